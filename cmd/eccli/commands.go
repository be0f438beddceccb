package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ecengine.mleku.dev"
)

var errInvalidSignature = errors.New("signature is invalid")

func (c *cli) keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generates a key pair.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.newSigner()
			if err != nil {
				return err
			}
			defer s.Zero()
			if err := s.Generate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "private: %x\npublic:  %x\n", s.Sec(), s.Pub())
			return nil
		},
	}
}

func (c *cli) signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Signs a digest with ECDSA.",
		Long:  `Signs a digest, or the hash of a message, and prints the DER signature in hex`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.newSigner()
			if err != nil {
				return err
			}
			defer s.Zero()
			key, err := requiredHex(cmd, "key")
			if err != nil {
				return err
			}
			if err := s.InitSec(key); err != nil {
				return err
			}
			digest, err := readDigest(cmd, s.Context().Curve())
			if err != nil {
				return err
			}
			sig, err := s.Sign(digest)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(sig))
			return nil
		},
	}
	cmd.Flags().String("key", "", "hex encoded private key")
	digestFlags(cmd)
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verifies an ECDSA signature.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.newSigner()
			if err != nil {
				return err
			}
			pub, err := requiredHex(cmd, "pub")
			if err != nil {
				return err
			}
			sig, err := requiredHex(cmd, "sig")
			if err != nil {
				return err
			}
			if err := s.InitPub(pub); err != nil {
				return err
			}
			digest, err := readDigest(cmd, s.Context().Curve())
			if err != nil {
				return err
			}
			valid, err := s.Verify(digest, sig)
			if err != nil {
				return err
			}
			if !valid {
				fmt.Fprintln(cmd.OutOrStdout(), "invalid")
				return errInvalidSignature
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	cmd.Flags().String("pub", "", "hex encoded public key")
	cmd.Flags().String("sig", "", "hex encoded DER signature")
	digestFlags(cmd)
	return cmd
}

func (c *cli) ecdhCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ecdh",
		Short: "Derives an ECDH shared secret.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.newSigner()
			if err != nil {
				return err
			}
			defer s.Zero()
			key, err := requiredHex(cmd, "key")
			if err != nil {
				return err
			}
			peer, err := requiredHex(cmd, "peer")
			if err != nil {
				return err
			}
			if err := s.InitSec(key); err != nil {
				return err
			}
			secret, err := s.ECDH(peer)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(secret))
			return nil
		},
	}
	cmd.Flags().String("key", "", "hex encoded private key")
	cmd.Flags().String("peer", "", "hex encoded peer public key")
	return cmd
}

func curvesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "curves",
		Short: "Lists the built-in curves.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, curve := range ecengine.Curves() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-12s %d\n", curve.Name, curve.Family, curve.NBytes)
			}
			return nil
		},
	}
}
