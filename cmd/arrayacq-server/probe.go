package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/arrayacq/internal/client"
	"github.com/muurk/arrayacq/internal/discovery"
)

var (
	probeCount     int
	probeTimeout   time.Duration
	probeConfigure bool
	probeGain      float32
)

var probeCmd = &cobra.Command{
	Use:   "probe [host:port]",
	Short: "Connect to a server and exercise the protocol",
	Long: `Connect to a running acquisition server, perform the version handshake,
query the device parameters and acquire a number of signals.

Without an address the first server advertised over mDNS is used.`,
	Example: `  # Probe a server found over mDNS
  arrayacq-server probe

  # Configure the device and acquire 10 signals
  arrayacq-server probe 192.168.1.20:55500 --configure --count 10`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().IntVar(&probeCount, "count", 1, "Number of signals to acquire")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "Timeout for discovery, connection and each request")
	probeCmd.Flags().BoolVar(&probeConfigure, "configure", false, "Run a full configuration sequence before acquiring")
	probeCmd.Flags().Float32Var(&probeGain, "gain", 20, "Gain in dB used with --configure")
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	var addr string
	if len(args) == 1 {
		addr = args[0]
	} else {
		fmt.Printf("No address specified, looking for %s servers...\n", discovery.ServiceType)
		scanner := discovery.NewScanner()
		scanner.Timeout = probeTimeout
		srv, err := scanner.First(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Found %s\n", srv)
		addr = srv.Addr()
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, probeTimeout)
	defer dialCancel()
	c, err := client.Dial(dialCtx, addr)
	if err != nil {
		return err
	}
	c.Timeout = probeTimeout

	opts := probeOptions{Count: probeCount, Configure: probeConfigure, Gain: probeGain}
	if err := probe(c, opts, cmd.OutOrStdout()); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

// defaultProbeFrequency is used by --configure when the server reports no
// sampling frequency.
const defaultProbeFrequency = 40e6

type probeOptions struct {
	Count     int
	Configure bool
	Gain      float32
}

// probe runs a complete session on c, writing a report to out. It always
// ends the session with DISCONNECT_REQUEST on success.
func probe(c *client.Client, opts probeOptions, out io.Writer) error {
	if err := c.Connect(); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	n, err := c.SignalLength()
	if err != nil {
		return err
	}
	lo, err := c.MinSampleValue()
	if err != nil {
		return err
	}
	hi, err := c.MaxSampleValue()
	if err != nil {
		return err
	}
	fs, err := c.SamplingFrequency()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Signal length:      %d\n", n)
	fmt.Fprintf(out, "Sample range:       %d to %d\n", lo, hi)
	fmt.Fprintf(out, "Sampling frequency: %g Hz\n", fs)

	if opts.Configure {
		if err := configure(c, opts, fs); err != nil {
			return fmt.Errorf("configuration failed: %w", err)
		}
		fmt.Fprintln(out, "Configuration:      ok")
	}

	for i := 0; i < opts.Count; i++ {
		start := time.Now()
		sig, err := c.Signal()
		if err != nil {
			return fmt.Errorf("acquisition %d: %w", i+1, err)
		}
		channels := 0
		if n > 0 {
			channels = len(sig) / int(n)
		}
		fmt.Fprintf(out, "Signal %d: %d channels, peak %d, %s\n",
			i+1, channels, peak(sig), time.Since(start).Round(time.Microsecond))
	}

	return c.Disconnect()
}

// configure runs the pre/post configuration sequence with every element
// active and zero delays.
func configure(c *client.Client, opts probeOptions, fs float32) error {
	sig, err := c.Signal()
	if err != nil {
		return err
	}
	n, err := c.SignalLength()
	if err != nil {
		return err
	}
	channels := 1
	if n > 0 && len(sig) >= int(n) {
		channels = len(sig) / int(n)
	}
	mask := strings.Repeat("1", channels)
	delays := make([]float32, channels)
	if !(fs > 0) {
		fs = defaultProbeFrequency
	}

	steps := []func() error{
		c.ExecPreConfiguration,
		func() error { return c.SetSamplingFrequency(fs) },
		func() error { return c.SetBaseElement(0) },
		func() error { return c.SetActiveReceiveElements(mask) },
		func() error { return c.SetActiveTransmitElements(mask) },
		func() error { return c.SetGain(opts.Gain) },
		func() error { return c.SetCenterFrequency(fs/8, 2) },
		func() error { return c.SetAcquisitionTime(float32(n) / fs) },
		func() error { return c.SetReceiveDelays(delays) },
		func() error { return c.SetTransmitDelays(delays) },
		c.ExecPostConfiguration,
		c.ExecPreLoopConfiguration,
		c.ExecPostLoopConfiguration,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func peak(sig []int16) int {
	p := 0
	for _, v := range sig {
		a := int(math.Abs(float64(v)))
		if a > p {
			p = a
		}
	}
	return p
}
