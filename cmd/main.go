package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/hexsphere/chunks"
	"github.com/aukilabs/hexsphere/featureflag"
	"github.com/aukilabs/hexsphere/geometry"
	hexhttp "github.com/aukilabs/hexsphere/http"
	"github.com/aukilabs/hexsphere/mesher"
	"github.com/aukilabs/hexsphere/models"
	"github.com/aukilabs/hexsphere/modules"
	"github.com/aukilabs/hexsphere/modules/colors"
	"github.com/aukilabs/hexsphere/smoketest"
	hwebsocket "github.com/aukilabs/hexsphere/websocket"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// The hexsphere version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "hexsphere_info",
		Help:        "Hexsphere information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"HEXSPHERE_ADDR"                 help:"Listening address for viewer connections."`
	AdminAddr          string        `cli:""        env:"HEXSPHERE_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"HEXSPHERE_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	Dataset            string        `cli:""        env:"HEXSPHERE_DATASET"              help:"The JSON dataset file of the sphere, zstd compressed when ending with .zst. A Fibonacci sphere is generated when empty."`
	Cells              int           `cli:""        env:"HEXSPHERE_CELLS"                help:"The number of cells of the generated sphere."`
	CellSize           float64       `cli:",hidden" env:"HEXSPHERE_CELL_SIZE"            help:"The size of the cells of the generated sphere."`
	TuningFile         string        `cli:""        env:"HEXSPHERE_TUNING_FILE"          help:"The YAML file with level of detail parameters."`
	LogLevel           string        `cli:""        env:"HEXSPHERE_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"HEXSPHERE_LOG_INDENT"           help:"Indent logs."`
	SyncClockInterval  time.Duration `cli:",hidden" env:"HEXSPHERE_SYNC_CLOCK_INTERVAL"  help:"Viewer sync clock (heartbeat) message interval."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"HEXSPHERE_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle viewer will be disconnected"`
	FrameDuration      time.Duration `cli:",hidden" env:"HEXSPHERE_FRAME_DURATION"       help:"The duration of a frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"HEXSPHERE_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary."`
	Events             eventsConfig  `cli:",hidden" env:"-"                              help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"HEXSPHERE_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                              help:"Show version."`
	Help               bool          `cli:""        env:"-"                              help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"HEXSPHERE_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"HEXSPHERE_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"HEXSPHERE_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"HEXSPHERE_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		Cells:              5000,
		CellSize:           0.01,
		LogLevel:           logs.InfoLevel.String(),
		SyncClockInterval:  time.Second * 5,
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the hexsphere chunk streaming server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "hexsphere",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	tuning, err := loadTuning(conf.TuningFile)
	if err != nil {
		logs.Fatal(err)
	}

	data, name, err := loadDataset(conf)
	if err != nil {
		logs.Fatal(err)
	}

	flags := featureflag.New(conf.FeatureFlags)

	body := chunks.NewBody(name, data, chunks.BodyOptions{
		Capacity:  tuning.Body.Capacity,
		HalfWidth: tuning.Body.HalfWidth,
	})

	pool := &mesher.Pool{
		NumWorkers:  tuning.Mesher.Workers,
		MaxInFlight: tuning.Mesher.MaxInFlight,
	}
	defer pool.Close()

	buildOptions := mesher.Options{
		SimplifyThreshold: tuning.Mesher.SimplifyThreshold,
	}
	flags.IfSet(featureflag.FlagDisableSimplify, func() {
		buildOptions.DisableSimplify = true
	})
	flags.IfSet(featureflag.FlagDisableDuplicate, func() {
		buildOptions.DisableDuplicate = true
	})

	manager := &chunks.Manager{
		Body:         body,
		Pool:         pool,
		BuildOptions: buildOptions,
		Resolver:     chunks.Resolver{Epsilon: tuning.Resolver.Epsilon},
	}
	defer manager.Close()

	camera := models.NewCamera(models.DefaultPOV)
	scene := models.NewScene(conf.FrameDuration, camera)
	defer scene.Close()

	hub := &hwebsocket.Hub{}
	hub.AddManager(manager)

	var mods []modules.Module
	flags.IfNotSet(featureflag.FlagDisableColors, func() {
		mods = append(mods, &colors.Module{
			SampleSize: tuning.Colors.SampleSize,
			OnPaint:    hub.ChunkPainted,
		})
	})
	for _, m := range mods {
		m.Init(scene, manager)
		defer m.Close()
	}

	scene.HandleFrame(func() {
		if n := pool.CheckWorkers(); n != 0 {
			logs.WithTag("respawned", n).Warn("mesher workers respawned")
		}

		manager.Tick(camera.POV())

		for _, m := range mods {
			m.HandleFrame()
		}
		hub.HandleFrame()
	})

	readinessCheck := func() bool {
		return scene.FrameCount() != 0 && len(manager.Chunks()) != 0
	}

	var service http.ServeMux
	service.Handle("/health", hexhttp.HandleWithCORS(http.HandlerFunc(hexhttp.HandleHealthCheck)))
	service.Handle("/version", hexhttp.HandleWithCORS(http.HandlerFunc(hexhttp.HandleVersion(version))))
	service.Handle("/ready", hexhttp.HandleWithCORS(http.HandlerFunc(hexhttp.HandleReadyCheck(readinessCheck))))
	service.Handle("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:   conf.PublicEndpoint,
		NumWorkers: tuning.Mesher.Workers,
		Limiter:    rate.NewLimiter(rate.Every(time.Minute), 1),
		SendResult: func(_ context.Context, res smoketest.Result) error {
			logs.WithTag("result", res).Info("smoke test completed")
			return nil
		},
	}))

	service.Handle("/", hexhttp.HandleWithCORS(websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var h hwebsocket.Handler = &hwebsocket.ViewerHandler{
				ClientSyncClockInterval: conf.SyncClockInterval,
				ClientIdleTimeout:       conf.ClientIdleTimeout,
				Camera:                  camera,
				Hub:                     hub,
			}
			h = hwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = hwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			hwebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", hexhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", hexhttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/chunks", hexhttp.HandleChunks(manager))
	admin.HandleFunc("/octree", hexhttp.HandleOctree(body))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("body", body.Name).
		WithTag("cells", humanize.Comma(int64(body.CellCount()))).
		WithTag("feature_flags", flags.List()).
		Info("starting hexsphere server")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scene.StartDispatchFrames()
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		scene.Close()
		return nil
	})

	g.Go(func() error {
		logSummaries(ctx, conf.LogSummaryInterval, manager, hub)
		return nil
	})

	g.Go(func() error {
		return hexhttp.ListenAndServe(ctx,
			&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
				hexhttp.MetricsPathFormatter)},
			&http.Server{Addr: conf.AdminAddr, Handler: &admin},
		)
	})

	if err := g.Wait(); err != nil {
		logs.Fatal(err)
	}
}

// logSummaries periodically logs the state of the chunks.
func logSummaries(ctx context.Context, interval time.Duration, m *chunks.Manager, hub *hwebsocket.Hub) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s := m.Snapshot()
			logs.WithTag("body", s.BodyName).
				WithTag("active", s.Active).
				WithTag("cleanup", s.Cleanup).
				WithTag("mesh_size", humanize.Bytes(s.MeshBytes)).
				WithTag("integrated", humanize.Comma(int64(s.Stats.Integrated))).
				WithTag("retries", humanize.Comma(int64(s.Stats.Retries))).
				WithTag("viewers", hub.ClientCount()).
				Info("chunks summary")
		}
	}
}

// loadDataset returns the sphere dataset and its name.
func loadDataset(conf config) (*geometry.Data, string, error) {
	if conf.Dataset == "" {
		return geometry.Fibonacci(conf.Cells, float32(conf.CellSize)), "fibonacci", nil
	}

	data, err := geometry.Load(conf.Dataset)
	if err != nil {
		return nil, "", err
	}

	name := filepath.Base(conf.Dataset)
	for _, ext := range []string{".zst", ".json"} {
		name = strings.TrimSuffix(name, ext)
	}
	return data, name, nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.Dataset == "" && conf.Cells <= 0 {
		return errors.New("the number of generated cells must be positive").
			WithTag("cells", conf.Cells)
	}

	if conf.CellSize <= 0 {
		return errors.New("the generated cell size must be positive").
			WithTag("cell_size", conf.CellSize)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("the frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	return nil
}
