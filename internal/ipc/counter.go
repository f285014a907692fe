package ipc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const counterFilePerm = 0o644

// Counter is a named, shared, persistent integer used to track how many
// live handles reference one named resource across all processes.
//
// The value lives in a file inside the namespace directory. Mutations
// are plain file operations with no locking of their own: callers
// serialize through [Counter.Mutex], the counter's own named mutex.
// Keeping the guard in the caller's hands lets a counter update be made
// atomic with the surrounding resource setup or teardown, not just with
// the update itself. The value never goes below zero.
type Counter struct {
	name  string
	path  string
	ns    *Namespace
	mutex *Mutex
}

// Counter attaches to the named counter. No OS state is touched until
// the first write; a counter whose value file does not exist reads as 0.
func (ns *Namespace) Counter(name string) *Counter {
	return &Counter{
		name:  name,
		path:  ns.path(name),
		ns:    ns,
		mutex: ns.Mutex(name + "_mutex"),
	}
}

// Name returns the counter name.
func (c *Counter) Name() string {
	return c.name
}

// Mutex returns the named mutex guarding this counter. Every mutation,
// and any read that must be consistent with concurrent mutators, happens
// with this mutex held.
func (c *Counter) Mutex() *Mutex {
	return c.mutex
}

// Get returns the current value. Caller holds [Counter.Mutex].
func (c *Counter) Get() (int64, error) {
	return c.read()
}

// Increment adds one and returns the new value. Caller holds
// [Counter.Mutex].
func (c *Counter) Increment() (int64, error) {
	return c.add(1)
}

// Decrement subtracts one and returns the new value. Decrementing a zero
// counter leaves it at zero. Caller holds [Counter.Mutex].
func (c *Counter) Decrement() (int64, error) {
	return c.add(-1)
}

// Reset forces the value to 0. Used when creation fails partway, so a
// stuck nonzero counter with no live owners is never left behind.
func (c *Counter) Reset() error {
	return c.write(0)
}

// Destroy removes the counter's value file and its guarding mutex from
// the namespace. Only safe once no other handle needs the counter.
func (c *Counter) Destroy() error {
	err := c.ns.fsys.Remove(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ipc: destroy counter %q: %w", c.name, err)
	}

	return c.mutex.Destroy()
}

func (c *Counter) add(delta int64) (int64, error) {
	value, err := c.read()
	if err != nil {
		return 0, err
	}

	value += delta
	if value < 0 {
		value = 0
	}

	if err := c.write(value); err != nil {
		return 0, err
	}

	return value, nil
}

// read returns the stored value. A missing or empty file reads as 0 so a
// counter destroyed by another process does not wedge stragglers.
func (c *Counter) read() (int64, error) {
	data, err := c.ns.fsys.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("ipc: read counter %q: %w", c.name, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}

	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ipc: counter %q holds %q: %w", c.name, text, err)
	}

	return value, nil
}

func (c *Counter) write(value int64) error {
	data := []byte(strconv.FormatInt(value, 10) + "\n")

	if err := c.ns.fsys.WriteFileAtomic(c.path, data, counterFilePerm); err != nil {
		return fmt.Errorf("ipc: write counter %q: %w", c.name, err)
	}

	return nil
}
