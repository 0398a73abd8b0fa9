package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-core/apps/api/echo"
	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"

	dig_container "github.com/trezcool/masomo-core/apps/api/di/dig"
)

// apiParams is what the API process takes from the container.
type apiParams struct {
	dig.In

	Conf     *core.Config
	Logger   core.Logger
	DBLogger core.Logger `name:"dbLogger"`
	Store    school.Store
	Server   *echoapi.Server
}

func startWithDig() {
	must(dig_container.New().Invoke(runAPI))
}

func runAPI(p apiParams) {
	p.Logger.Info(fmt.Sprintf("API starting : build %q, env %s, %s store", p.Conf.Build, p.Conf.Env, p.Conf.Database.Backend))

	// the store outlives the server: it is closed once in-flight requests are done
	defer closeStore(p.Store, p.DBLogger)

	publishDebugVars(p.Conf, p.Store)
	go func() {
		// /debug/vars is registered on the default mux by expvar
		if err := http.ListenAndServe(p.Conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			p.Logger.Error(fmt.Sprintf("debug listener on %s stopped: %v", p.Conf.Server.DebugHost, err), err)
		}
	}()

	go p.Server.Start()

	select {
	case err := <-p.Server.Errors():
		p.Logger.Error(fmt.Sprintf("API stopped serving: %v", err), err)

	case sig := <-p.Server.ShutdownSignal():
		p.Logger.Info(fmt.Sprintf("API draining on %v", sig))
		drain(p.Conf.Server.ShutdownTimeout, p.Server, p.Logger)
	}
}

// drain lets in-flight requests finish within timeout, then forces the listener closed.
func drain(timeout time.Duration, server *echoapi.Server, logger core.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error(fmt.Sprintf("draining requests: %v", err), err)
		if err = server.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing listener: %v", err), err)
		}
	}
}

func closeStore(store school.Store, dbLogger core.Logger) {
	if err := store.Close(); err != nil {
		dbLogger.Error(fmt.Sprintf("closing store: %v", err), err)
		return
	}
	dbLogger.Info("store closed")
}

// publishDebugVars exposes the build and the row count of every kind under /debug/vars.
func publishDebugVars(conf *core.Config, store school.Store) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("backend").Set(string(conf.Database.Backend))
	expvar.Publish("rows", expvar.Func(func() any {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		counts := make(map[string]any, len(school.Kinds))
		for _, kind := range school.Kinds {
			es, err := store.List(ctx, kind, nil)
			if err != nil {
				counts[string(kind)] = err.Error()
				continue
			}
			counts[string(kind)] = len(es)
		}
		return counts
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
