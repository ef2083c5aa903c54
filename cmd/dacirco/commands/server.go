package commands

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	prometheusmodel "github.com/prometheus/common/model"
	gohttpmetricsprometheus "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/reload"
	_ "k8s.io/client-go/plugin/pkg/client/auth" // Init all available Kube client auth systems.
	kubernetesclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/dacirco/dacirco/internal/app/jobmanager"
	"github.com/dacirco/dacirco/internal/config"
	"github.com/dacirco/dacirco/internal/http/api"
	"github.com/dacirco/dacirco/internal/log"
	metricsprometheus "github.com/dacirco/dacirco/internal/metrics/prometheus"
	"github.com/dacirco/dacirco/internal/storage/memory"
	transcoderkubernetes "github.com/dacirco/dacirco/internal/transcoder/kubernetes"
	transcoderopenstack "github.com/dacirco/dacirco/internal/transcoder/openstack"
)

var runnerModes = []string{runnerModeKubernetes, runnerModeKubernetesDryRun, runnerModeOpenStack, runnerModeFake}

const (
	// kubernetes mode runs every transcoding as a pod on a cluster.
	runnerModeKubernetes = "kubernetes"
	// kubernetes-dry-run mode uses real Kubernetes clients, but ignoring Kubernetes write operations.
	runnerModeKubernetesDryRun = "kubernetes-dry-run"
	// openstack mode boots a worker VM per transcoding.
	runnerModeOpenStack = "openstack"
	// fake mode fakes the transcoding backend, no cluster or cloud is required.
	runnerModeFake = "fake"
)

type serverCommand struct {
	apiServer struct {
		address string
	}
	statusServer struct {
		address         string
		healthCheckPath string
		metricsPath     string
		pprofPath       string
	}
	hotReload struct {
		address string
		path    string
	}

	configFile string

	runnerMode  string
	kubeRunMode string
	kubeConfig  string
	kubeContext string
	kubeLocal   bool

	workers         int
	queueSize       int
	scheduleTimeout string
	runTimeout      string
	bootTimeout     string
}

// NewServerCommand returns the DaCirco server command.
func NewServerCommand(app *kingpin.Application) Command {
	c := &serverCommand{}
	cmd := app.Command("server", "Starts the DaCirco transcoding service.")

	cmd.Flag("api-listen-address", "API listen address.").Default(":9000").StringVar(&c.apiServer.address)
	cmd.Flag("status-listen-address", "Status (health check, metrics, pprof...) listen address.").Default(":8081").StringVar(&c.statusServer.address)
	cmd.Flag("health-check-path", "Health check path.").Default("/status").StringVar(&c.statusServer.healthCheckPath)
	cmd.Flag("metrics-path", "Prometheus metrics path where metrics will be served.").Default("/metrics").StringVar(&c.statusServer.metricsPath)
	cmd.Flag("pprof-path", "PProf path where debug tool is available.").Default("/debug/pprof").StringVar(&c.statusServer.pprofPath)
	cmd.Flag("hot-reload-addr", "The listen address for hot-reloading components that allow it.").Default(":8082").StringVar(&c.hotReload.address)
	cmd.Flag("hot-reload-path", "The webhook path for hot-reloading components that allow it.").Default("/-/reload").StringVar(&c.hotReload.path)

	cmd.Flag("config-file", "The path to the service configuration file.").Default("dacirco.yaml").StringVar(&c.configFile)

	cmd.Flag("mode", "Selects the transcoding backend.").Default(runnerModeKubernetes).EnumVar(&c.runnerMode, runnerModes...)
	cmd.Flag("kube-run-mode", "Selects how transcodings run on the cluster.").Default(string(transcoderkubernetes.PodRunMode)).
		EnumVar(&c.kubeRunMode, string(transcoderkubernetes.PodRunMode), string(transcoderkubernetes.BatchJobRunMode))
	cmd.Flag("kube-local", "Enable local Kubernetes credentials load.").BoolVar(&c.kubeLocal)
	kubeHome := filepath.Join(homedir.HomeDir(), ".kube", "config")
	cmd.Flag("kube-config", "Kubernetes configuration path, only used when local credentials load is enabled.").Default(kubeHome).StringVar(&c.kubeConfig)
	cmd.Flag("kube-context", "Kubernetes context, only used when local credentials load is enabled.").StringVar(&c.kubeContext)

	cmd.Flag("workers", "Concurrent transcoding executions.").Default("5").IntVar(&c.workers)
	cmd.Flag("queue-size", "Capacity of the dispatch queue, job creations over a full queue are rejected.").Default("256").IntVar(&c.queueSize)
	cmd.Flag("schedule-timeout", "The maximum wait for a created pod to be scheduled.").Default("180s").StringVar(&c.scheduleTimeout)
	cmd.Flag("run-timeout", "The maximum wait for a single transcoding.").Default("30m").StringVar(&c.runTimeout)
	cmd.Flag("boot-timeout", "The maximum wait for a worker VM to boot and be reachable.").Default("5m").StringVar(&c.bootTimeout)

	return c
}

func (c serverCommand) Name() string { return "server" }
func (c serverCommand) Run(ctx context.Context, rootConfig RootConfig) error {
	logger := rootConfig.Logger.WithValues(log.Kv{"command": c.Name()})
	promReg := prometheus.DefaultRegisterer

	cfgStore, err := config.NewStore(c.configFile)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	scheduleTimeout, err := parseDuration(c.scheduleTimeout)
	if err != nil {
		return fmt.Errorf("invalid schedule timeout: %w", err)
	}
	runTimeout, err := parseDuration(c.runTimeout)
	if err != nil {
		return fmt.Errorf("invalid run timeout: %w", err)
	}
	bootTimeout, err := parseDuration(c.bootTimeout)
	if err != nil {
		return fmt.Errorf("invalid boot timeout: %w", err)
	}

	runner, err := c.newRunner(ctx, rootConfig, cfgStore, scheduleTimeout, runTimeout, bootTimeout)
	if err != nil {
		return fmt.Errorf("could not create transcoding runner: %w", err)
	}

	metricsRecorder := metricsprometheus.NewRecorder(promReg)

	service, err := jobmanager.NewService(jobmanager.ServiceConfig{
		Runner:          runner,
		Repository:      memory.NewRepository(),
		MetricsRecorder: metricsRecorder,
		Workers:         c.workers,
		QueueSize:       c.queueSize,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("could not create job manager: %w", err)
	}

	// Prepare our run and reload entrypoints.
	var g run.Group
	reloadManager := reload.NewManager()

	// Run hot-reload.
	{
		// Set the configuration store reloader.
		reloadManager.Add(0, reload.ReloaderFunc(func(ctx context.Context, id string) error {
			return cfgStore.Reload()
		}))

		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				logger.Infof("Hot-reload manager running")
				defer logger.Infof("Hot-reload manager stopped")
				return reloadManager.Run(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// OS signals.
	{
		sigC := make(chan os.Signal, 1)
		reloadC := make(chan struct{})
		exitC := make(chan struct{})
		signal.Notify(sigC, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

		// Add hot-reload notifier for SIGHUP.
		reloadManager.On(reload.NotifierFunc(func(ctx context.Context) (string, error) {
			<-reloadC
			logger.Infof("Hot-reload triggered from OS SIGHUP signal")
			return "sighup", nil
		}))

		g.Add(
			func() error {
				logger.Infof("OS signals listener started")
				defer logger.Infof("OS signals listener stopped")
				for {
					select {
					case s := <-sigC:
						logger.Infof("Signal %s received", s)
						// Don't stop if SIGHUP, only reload.
						if s == syscall.SIGHUP {
							reloadC <- struct{}{}
							continue
						}

						return nil
					case <-exitC:
						return nil
					}
				}
			},
			func(_ error) {
				close(exitC)
			},
		)
	}

	// Hot-reloading HTTP server.
	{
		// Set reloader signaler.
		hotReloadC := make(chan struct{})
		reloadManager.On(reload.NotifierFunc(func(ctx context.Context) (string, error) {
			<-hotReloadC
			logger.Infof("Hot-reload triggered from http webhook")
			return "http", nil
		}))

		mux := http.NewServeMux()

		// On request send signal for reload over the channel.
		mux.Handle(c.hotReload.path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			hotReloadC <- struct{}{}
		}))

		server := &http.Server{
			Addr:    c.hotReload.address,
			Handler: mux,
		}

		g.Add(
			func() error {
				logger.WithValues(log.Kv{"addr": c.hotReload.address}).Infof("Hot-reload http server listening")
				defer logger.WithValues(log.Kv{"addr": c.hotReload.address}).Infof("Hot-reload http server stopped")
				return server.ListenAndServe()
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				err := server.Shutdown(ctx)
				if err != nil {
					logger.Errorf("Error shutting down hot-reload server: %s", err)
				}
			},
		)
	}

	// Status and metadata server (health checks, metrics, pprof...).
	{
		logger := logger.WithValues(log.Kv{
			"addr":         c.statusServer.address,
			"metrics":      c.statusServer.metricsPath,
			"health-check": c.statusServer.healthCheckPath,
			"pprof":        c.statusServer.pprofPath,
		})
		mux := http.NewServeMux()

		// Pprof.
		mux.HandleFunc(c.statusServer.pprofPath+"/", pprof.Index)
		mux.HandleFunc(c.statusServer.pprofPath+"/cmdline", pprof.Cmdline)
		mux.HandleFunc(c.statusServer.pprofPath+"/profile", pprof.Profile)
		mux.HandleFunc(c.statusServer.pprofPath+"/symbol", pprof.Symbol)
		mux.HandleFunc(c.statusServer.pprofPath+"/trace", pprof.Trace)

		// Metrics.
		mux.Handle(c.statusServer.metricsPath, promhttp.Handler())

		// Health checks.
		mux.HandleFunc(c.statusServer.healthCheckPath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) }))

		server := http.Server{
			Addr:    c.statusServer.address,
			Handler: mux,
		}

		g.Add(
			func() error {
				logger.Infof("Status http server listening...")
				return server.ListenAndServe()
			},
			func(_ error) {
				logger.Infof("Start draining connections")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				err := server.Shutdown(ctx)
				if err != nil {
					logger.Errorf("Error while shutting down the server: %s", err)
				} else {
					logger.Infof("Server stopped")
				}
			},
		)
	}

	// API server.
	{
		apiHandler, err := api.New(api.Config{
			ServiceApp: service,
			MetricsRecorder: gohttpmetricsprometheus.NewRecorder(gohttpmetricsprometheus.Config{
				Prefix:   metricsprometheus.Prefix,
				Registry: promReg,
			}),
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create API handler: %w", err)
		}

		server := http.Server{
			Addr:    c.apiServer.address,
			Handler: apiHandler,
		}

		logger := logger.WithValues(log.Kv{"addr": c.apiServer.address})
		g.Add(
			func() error {
				logger.Infof("API http server listening...")
				return server.ListenAndServe()
			},
			func(_ error) {
				logger.Infof("Start draining connections")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				err := server.Shutdown(ctx)
				if err != nil {
					logger.Errorf("Error while shutting down the server: %s", err)
				} else {
					logger.Infof("Server stopped")
				}
			},
		)
	}

	// Job dispatcher.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				return service.RunDispatcher(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

func (c serverCommand) newRunner(ctx context.Context, rootConfig RootConfig, cfgStore *config.Store, scheduleTimeout, runTimeout, bootTimeout time.Duration) (jobmanager.Runner, error) {
	logger := rootConfig.Logger

	podConfigFunc := func() transcoderkubernetes.PodConfig {
		cfg := cfgStore.Get()
		return transcoderkubernetes.PodConfig{
			Image:          cfg.Transcoder.Image,
			Namespace:      cfg.Transcoder.Namespace,
			CPULimit:       cfg.Transcoder.CPULimit,
			MemoryLimit:    cfg.Transcoder.MemoryLimit,
			ControllerHost: cfg.Transcoder.ControllerHost,
			ControllerIP:   cfg.Transcoder.ControllerIP,
			OpenStack:      cfg.OpenStack.Env(),
		}
	}

	switch c.runnerMode {
	case runnerModeFake:
		logger.Warningf("Using fake transcoding backend")
		return transcoderkubernetes.NewRunner(transcoderkubernetes.RunnerConfig{
			PodManager:      transcoderkubernetes.NewFakePodManager(logger),
			PodConfigFunc:   podConfigFunc,
			Mode:            transcoderkubernetes.RunMode(c.kubeRunMode),
			ScheduleTimeout: scheduleTimeout,
			RunTimeout:      runTimeout,
			Logger:          logger,
		})

	case runnerModeKubernetes, runnerModeKubernetesDryRun:
		kubeCfg, err := c.loadKubernetesConfig()
		if err != nil {
			return nil, fmt.Errorf("could not load Kubernetes configuration: %w", err)
		}

		client, err := kubernetesclient.NewForConfig(kubeCfg)
		if err != nil {
			return nil, fmt.Errorf("could not create Kubernetes client: %w", err)
		}

		manager := transcoderkubernetes.NewPodManager(client, logger)
		if c.runnerMode == runnerModeKubernetesDryRun {
			logger.Warningf("Kubernetes in dry run mode")
			manager = transcoderkubernetes.NewDryRunPodManager(manager, logger)
		}

		return transcoderkubernetes.NewRunner(transcoderkubernetes.RunnerConfig{
			PodManager:      manager,
			PodConfigFunc:   podConfigFunc,
			Mode:            transcoderkubernetes.RunMode(c.kubeRunMode),
			ScheduleTimeout: scheduleTimeout,
			RunTimeout:      runTimeout,
			Logger:          logger,
		})

	case runnerModeOpenStack:
		cfg := cfgStore.Get()

		clients, err := transcoderopenstack.NewClients(ctx, cfg.OpenStack.Cloud)
		if err != nil {
			return nil, fmt.Errorf("could not create OpenStack clients: %w", err)
		}

		return transcoderopenstack.NewRunner(transcoderopenstack.RunnerConfig{
			VMManager:   transcoderopenstack.NewVMManager(clients, bootTimeout, logger),
			ObjectStore: transcoderopenstack.NewObjectStore(clients.ObjectStore, logger),
			Worker: transcoderopenstack.VMSpec{
				ImageName:         cfg.VM.Image,
				FlavorName:        cfg.VM.Flavor,
				NetworkName:       cfg.VM.Network,
				FloatingIPNetwork: cfg.VM.FloatingIPNetwork,
			},
			SSHUser:          cfg.VM.SSHUser,
			KeyFile:          cfg.VM.KeyFile,
			TranscoderScript: cfg.VM.TranscoderScript,
			ControllerHost:   cfg.Transcoder.ControllerHost,
			ControllerIP:     cfg.Transcoder.ControllerIP,
			OpenStack:        cfg.OpenStack.Env(),
			BootTimeout:      bootTimeout,
			RunTimeout:       runTimeout,
			Logger:           logger,
		})
	}

	return nil, fmt.Errorf("unknown transcoding backend %q", c.runnerMode)
}

// loadKubernetesConfig loads kubernetes configuration based on flags.
func (c serverCommand) loadKubernetesConfig() (*rest.Config, error) {
	var cfg *rest.Config

	// If kube local mode then use configuration flag path.
	if c.kubeLocal {
		config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{
				ExplicitPath: c.kubeConfig,
			},
			&clientcmd.ConfigOverrides{
				CurrentContext: c.kubeContext,
			}).ClientConfig()

		if err != nil {
			return nil, fmt.Errorf("could not load configuration: %w", err)
		}
		cfg = config
	} else {
		config, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("error loading kubernetes configuration inside cluster, check app is running outside kubernetes cluster or run in development mode: %w", err)
		}
		cfg = config
	}

	// Set better cli rate limiter.
	cfg.QPS = 100
	cfg.Burst = 100

	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := prometheusmodel.ParseDuration(s)
	if err != nil {
		return 0, err
	}

	return time.Duration(d), nil
}
