package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/nhoover/coderoom/api"
	"github.com/nhoover/coderoom/config"
	"github.com/nhoover/coderoom/execution"
	"github.com/nhoover/coderoom/globals"
	"github.com/nhoover/coderoom/persistence"
	"github.com/nhoover/coderoom/ws"
	"github.com/spf13/pflag"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "http service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key (optional)")
)

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	// the backend is probed exactly once here; an unreachable backend means
	// the whole process runs on the in-memory store
	store := persistence.NewStore(globalConfig)
	cached, err := persistence.NewCachedStore(store, globalConfig.PersistenceConfig.CacheSize)
	if err != nil {
		panic(err)
	}
	defer cached.Close()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		globals.AppLogger.Info("shutting down")
		cached.Close()
		os.Exit(0)
	}()

	hub := ws.NewHub(globalConfig, cached)
	go hub.Run()

	execClient := execution.NewClient(globalConfig.ExecutionConfig.URL)

	router := mux.NewRouter()
	apiHandler := api.New(hub, cached, execClient)
	apiHandler.SetupRoutes(router)
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	}).Methods(http.MethodGet)

	handler := api.CORSMiddleware(router)

	globals.AppLogger.Info("coderoom server starting", "addr", *addr,
		"persistence", globalConfig.PersistenceConfig.Type)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, handler)
	} else {
		err = http.ListenAndServe(*addr, handler)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}
