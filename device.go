package ecengine

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Device pairs an accelerator with the mutex guarding it. Every dispatch
// happens inside Do, which holds the lock for the whole callback.
type Device struct {
	lock    sync.Locker
	engine  Engine
	metrics *Metrics
}

// NewDevice returns a Device guarding e with a fresh mutex.
func NewDevice(e Engine) *Device {
	return NewDeviceWithLock(e, &sync.Mutex{})
}

// NewDeviceWithLock returns a Device guarding e with a caller-supplied
// lock, for accelerators whose mutex is owned elsewhere.
func NewDeviceWithLock(e Engine, l sync.Locker) *Device {
	return &Device{lock: l, engine: e}
}

// SetMetrics attaches m to the device. A nil m disables instrumentation.
func (d *Device) SetMetrics(m *Metrics) {
	d.metrics = m
}

// Engine returns the guarded accelerator.
func (d *Device) Engine() Engine {
	return d.engine
}

// Shamir returns the combined-multiply primitive when the engine has one.
func (d *Device) Shamir() (ShamirEngine, bool) {
	s, ok := d.engine.(ShamirEngine)
	return s, ok
}

// KeySlotSigner returns the key-slot signing primitive when the engine has
// one.
func (d *Device) KeySlotSigner() (KeySlotSigner, bool) {
	s, ok := d.engine.(KeySlotSigner)
	return s, ok
}

// Do acquires the device mutex, runs fn with the engine, and releases the
// mutex on every exit path including panics.
func (d *Device) Do(op string, fn func(e Engine) error) error {
	start := time.Now()
	d.lock.Lock()
	err := func() error {
		defer d.lock.Unlock()
		return fn(d.engine)
	}()
	d.metrics.observe(op, start, err)
	return err
}

// engineFailure carries an opaque accelerator error. It matches ErrEngine
// and the original cause under errors.Is.
type engineFailure struct {
	cause error
}

func (e engineFailure) Error() string {
	return "engine failure: " + e.cause.Error()
}

func (e engineFailure) Unwrap() []error {
	return []error{ErrEngine, e.cause}
}

// engineError annotates an error returned by the accelerator. Errors that
// already carry an ErrorKind keep it; anything else is classified as an
// engine failure.
func engineError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var kind ErrorKind
	if errors.As(err, &kind) {
		return errors.Wrapf(err, format, args...)
	}
	return errors.Wrapf(engineFailure{cause: err}, format, args...)
}
