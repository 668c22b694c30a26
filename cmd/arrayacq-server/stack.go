package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/muurk/arrayacq/internal/admin"
	"github.com/muurk/arrayacq/internal/config"
	"github.com/muurk/arrayacq/internal/dataset"
	"github.com/muurk/arrayacq/internal/device"
	"github.com/muurk/arrayacq/internal/discovery"
	"github.com/muurk/arrayacq/internal/logging"
	"github.com/muurk/arrayacq/internal/metrics"
	"github.com/muurk/arrayacq/internal/protocol"
	"github.com/muurk/arrayacq/internal/server"
	"github.com/muurk/arrayacq/internal/session"
	"github.com/muurk/arrayacq/internal/version"
)

// stack is the assembled server: device, dispatcher, controller and the
// optional admin API.
type stack struct {
	cfg      *config.Config
	device   *device.Simulated
	registry *prometheus.Registry
	ctrl     *server.Controller
	admin    *admin.Server
}

func buildStack(cfg *config.Config) (*stack, error) {
	m, err := loadDataset(cfg)
	if err != nil {
		return nil, err
	}

	dev, err := device.NewSimulated(m, device.Config{
		MuxChannels:       cfg.Device.MuxChannels,
		SamplingFrequency: cfg.Device.SamplingFrequency,
		Pause:             cfg.Device.Pause,
		Seed:              cfg.Device.Seed,
	})
	if err != nil {
		return nil, err
	}

	reg, met := metrics.NewRegistry()
	disp := session.New(dev,
		session.WithLimits(protocol.Limits{
			MaxPayloadBytes: cfg.MaxPayloadBytes,
			MaxElements:     cfg.MaxElements,
		}),
		session.WithMetrics(met),
	)

	ccfg := server.ControllerConfig{
		Host:        cfg.Host,
		Dispatcher:  disp,
		Pause:       cfg.Pause,
		KeepEnabled: cfg.KeepEnabled,
		Metrics:     met,
	}
	if cfg.MDNS {
		ccfg.Advertiser = &discovery.Advertiser{
			Text: map[string]string{
				discovery.ProtocolKey: strconv.FormatUint(uint64(protocol.Version), 10),
				"version":             version.Version,
			},
		}
	}

	s := &stack{
		cfg:      cfg,
		device:   dev,
		registry: reg,
		ctrl:     server.NewController(ccfg),
	}

	if cfg.AdminAddr != "" {
		h := admin.NewHandler(admin.Config{
			Controller: s.ctrl,
			Device:     dev,
			Gatherer:   reg,
			Version:    version.Get(protocol.Version),
		})
		s.admin, err = admin.Listen(cfg.AdminAddr, h)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// loadDataset reads the configured dataset, or generates a synthetic one
// when no data file is set.
func loadDataset(cfg *config.Config) (*dataset.Matrix, error) {
	if cfg.DataFile == "" {
		syn := cfg.Device.Synthetic
		logging.Info("Using synthetic dataset",
			zap.Int("channels", syn.Channels),
			zap.Int("samples", syn.Samples),
		)
		return dataset.Synthetic(syn.Channels, syn.Samples, float64(cfg.Device.SamplingFrequency), syn.CenterFrequency), nil
	}

	store, err := dataset.Open(cfg.DataFile)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	m, err := store.Load(cfg.DatasetName)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %q from %s: %w", cfg.DatasetName, cfg.DataFile, err)
	}
	logging.Info("Dataset loaded",
		zap.String("file", cfg.DataFile),
		zap.String("name", cfg.DatasetName),
		zap.Int("channels", m.Channels),
		zap.Int("samples", m.Samples),
	)
	return m, nil
}

// run drives the controller and admin API until ctx ends or the controller
// exits. If port is non-zero the server is enabled on it first.
func (s *stack) run(ctx context.Context, port int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adminErr := make(chan error, 1)
	if s.admin != nil {
		go func() { adminErr <- s.admin.Serve(ctx) }()
	} else {
		close(adminErr)
	}

	if port != 0 {
		if err := s.ctrl.Enable(port); err != nil {
			return err
		}
	}

	err := s.ctrl.Run(ctx)
	cancel()
	if aerr := <-adminErr; aerr != nil {
		err = errors.Join(err, fmt.Errorf("admin: %w", aerr))
	}
	return err
}
