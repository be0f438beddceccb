package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ecengine.mleku.dev"
	"ecengine.mleku.dev/signer"
	"ecengine.mleku.dev/softengine"
)

// newSigner creates a signer for the configured curve on a fresh software
// device, with the engine section of the configuration applied.
func (c *cli) newSigner() (*signer.EngineSigner, error) {
	name := c.v.GetString("curve")
	curve := ecengine.CurveByName(name)
	if curve == nil {
		return nil, fmt.Errorf("unknown curve %q", name)
	}
	conf, err := ecengine.LoadConfig(c.v, "engine")
	if err != nil {
		return nil, err
	}
	dev := ecengine.NewDevice(softengine.New())
	if c.v.GetBool("metrics") {
		m, err := ecengine.NewMetrics(c.reg)
		if err != nil {
			return nil, err
		}
		dev.SetMetrics(m)
	}
	logger.Debugw("creating signer", "curve", curve.Name, "combiner", conf.Combiner)
	return signer.NewEngineSigner(curve, dev, ecengine.WithConfig(conf))
}

// digestFlags registers --digest, --message and --hash on cmd.
func digestFlags(cmd *cobra.Command) {
	cmd.Flags().String("digest", "", "hex encoded message digest")
	cmd.Flags().String("message", "", "message to hash before signing or verifying")
	cmd.Flags().String("hash", "", "hash algorithm for --message (default by curve size)")
}

// readDigest returns the digest named by the flags of cmd.
func readDigest(cmd *cobra.Command, curve *ecengine.Curve) ([]byte, error) {
	digestHex, _ := cmd.Flags().GetString("digest")
	msg, _ := cmd.Flags().GetString("message")
	hashName, _ := cmd.Flags().GetString("hash")
	switch {
	case digestHex != "" && msg != "":
		return nil, fmt.Errorf("--digest and --message are exclusive")
	case digestHex != "":
		return decodeHex("digest", digestHex)
	case msg != "":
		h := ecengine.DefaultHash(curve)
		if hashName != "" {
			var err error
			if h, err = ecengine.ParseHashAlgorithm(hashName); err != nil {
				return nil, err
			}
		}
		return h.Digest([]byte(msg))
	}
	return nil, fmt.Errorf("one of --digest or --message is required")
}

func decodeHex(what, s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", what, err)
	}
	return b, nil
}

func requiredHex(cmd *cobra.Command, flag string) ([]byte, error) {
	s, _ := cmd.Flags().GetString(flag)
	if s == "" {
		return nil, fmt.Errorf("--%s is required", flag)
	}
	return decodeHex(flag, s)
}
