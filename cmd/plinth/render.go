package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dudk/plinth/dealloc"
	"github.com/dudk/plinth/metric"
	"github.com/dudk/plinth/signal"
	"github.com/dudk/plinth/task"
	"github.com/dudk/plinth/wav"
)

const defaultDuration = 5 * time.Second

type renderSettings struct {
	out           string
	in            string
	duration      time.Duration
	buffers       int
	blockSize     int
	sampleRate    int
	channels      int
	bitDepth      int
	freq          float64
	speed         float64
	metricsAddr   string
	privateMemory bool
}

func renderCommand(v *viper.Viper, logger *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a sine tone or a wav file through a task into a wav file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := renderSettings{
				out:           v.GetString("out"),
				in:            v.GetString("in"),
				duration:      v.GetDuration("duration"),
				buffers:       v.GetInt("buffers"),
				blockSize:     v.GetInt("block-size"),
				sampleRate:    v.GetInt("sample-rate"),
				channels:      v.GetInt("channels"),
				bitDepth:      v.GetInt("bit-depth"),
				freq:          v.GetFloat64("freq"),
				speed:         v.GetFloat64("speed"),
				metricsAddr:   v.GetString("metrics-addr"),
				privateMemory: v.GetBool("private-memory"),
			}
			return render(cmd.Context(), s, logger)
		},
	}
	flags := cmd.Flags()
	flags.String("out", "out.wav", "Path of the rendered wav file")
	flags.String("in", "", "Path of a wav file to render instead of a sine tone")
	flags.Duration("duration", 0, "Length to render, 0 renders the whole input or 5s of tone")
	flags.Int("buffers", task.DefaultNumBuffers, "Number of buffers in flight")
	flags.Int("block-size", 512, "Samples per channel in a block")
	flags.Int("sample-rate", 44100, "Sample rate of the tone")
	flags.Int("channels", 2, "Number of channels of the tone")
	flags.Int("bit-depth", 16, "Bit depth of the rendered file")
	flags.Float64("freq", 440, "Frequency of the tone in Hz")
	flags.Float64("speed", 1, "Consumer pace relative to real time")
	flags.String("metrics-addr", "", "Serve prometheus metrics on this address")
	flags.Bool("private-memory", false, "Use a dedicated deferred-release memory instead of the global one")
	return cmd
}

// sine is an endless tone source.
type sine struct {
	freq      float64
	amplitude float64
}

func (s sine) Pull(clock signal.Clock, out signal.Float64) error {
	step := 2 * math.Pi * s.freq / float64(clock.SampleRate)
	for i := 0; i < out.Size(); i++ {
		value := s.amplitude * math.Sin(step*float64(clock.Samples+int64(i)))
		for c := range out {
			out[c][i] = value
		}
	}
	return nil
}

func render(ctx context.Context, s renderSettings, logger *logrus.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.speed <= 0 {
		return fmt.Errorf("invalid speed %v", s.speed)
	}

	var source task.Source = sine{freq: s.freq, amplitude: 0.5}
	if s.in != "" {
		in, err := wav.Open(s.in)
		if err != nil {
			return err
		}
		defer in.Close()
		s.sampleRate, s.channels = in.SampleRate(), in.NumChannels()
		source = in
	} else if s.duration == 0 {
		s.duration = defaultDuration
	}

	memory := dealloc.Global()
	if s.privateMemory {
		m, err := dealloc.New(dealloc.WithLogger(logger))
		if err != nil {
			return err
		}
		if err := m.Start(ctx); err != nil {
			return err
		}
		defer m.Close(context.Background())
		memory = m
	}

	registry := prometheus.NewRegistry()
	metrics, err := metric.NewTaskMetrics(registry)
	if err != nil {
		return err
	}
	registry.MustRegister(metric.NewAllocCollector(memory.Stats()))

	cfg := task.Config{
		NumBuffers:  s.buffers,
		BlockSize:   s.blockSize,
		NumChannels: s.channels,
		SampleRate:  s.sampleRate,
		Prime:       task.PrimeUpstream,
	}
	tk, err := task.New(cfg, source,
		task.WithLogger(logger),
		task.WithMemory(memory),
		task.WithMeter(metrics.Meter("render")),
	)
	if err != nil {
		return err
	}

	sink, err := wav.Create(s.out, s.sampleRate, s.channels, signal.BitDepth(s.bitDepth))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	consumerDone := make(chan struct{})
	if s.metricsAddr != "" {
		server := &http.Server{
			Addr:    s.metricsAddr,
			Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}
		g.Go(func() error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-ctx.Done():
			case <-consumerDone:
			}
			return server.Shutdown(context.Background())
		})
	}

	if err := tk.Start(ctx); err != nil {
		close(consumerDone)
		return errors.Join(err, sink.Close(), g.Wait())
	}
	logger.WithFields(logrus.Fields{
		"task":    tk.ID(),
		"latency": tk.Latency(),
		"out":     s.out,
	}).Info("rendering")

	g.Go(func() error {
		defer close(consumerDone)
		written, err := consume(ctx, tk, sink, s, logger)
		stopErr := tk.Stop(context.Background())
		closeErr := sink.Close()
		logger.WithFields(logrus.Fields{
			"blocks":   written,
			"duration": signal.DurationOf(s.sampleRate, int64(written*s.blockSize)),
		}).Info("render finished")
		return errors.Join(err, stopErr, closeErr)
	})
	return g.Wait()
}

// consume pulls blocks at the configured pace and writes them to sink until
// the duration is reached or the source is exhausted.
func consume(ctx context.Context, tk *task.Task, sink *wav.Sink, s renderSettings, logger logrus.FieldLogger) (int, error) {
	cfg := tk.Config()
	total := math.MaxInt
	if s.duration > 0 {
		total = int(math.Ceil(float64(s.duration) / float64(cfg.BlockDuration())))
	}
	ticker := time.NewTicker(time.Duration(float64(cfg.BlockDuration()) / s.speed))
	defer ticker.Stop()
	warn := rate.NewLimiter(rate.Every(time.Second), 1)

	out := signal.EmptyFloat64(cfg.NumChannels, cfg.BlockSize)
	underruns := 0
	for written := 0; written < total; {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		case <-ticker.C:
		}
		if !tk.Process(out) {
			select {
			case <-tk.Done():
				if tk.Ready() == 0 {
					return written, nil
				}
			default:
			}
			underruns++
			if warn.Allow() {
				logger.WithField("underruns", underruns).Warn("task underrun, writing silence")
			}
		}
		if err := sink.Write(out); err != nil {
			return written, err
		}
		written++
	}
	return total, nil
}
