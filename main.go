/*
Ember demo application. It loads the scene named in the config file and
renders it until the window is closed or the process is signalled.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/ember/engine"
	"github.com/spaghettifunk/ember/engine/config"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/testbed"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML application config")
	flag.Parse()

	cfg, err := config.LoadApplicationConfig(*configPath)
	if err != nil {
		core.LogFatal("loading config: %+v", err)
	}

	e, err := engine.New(testbed.NewTestGame(cfg).Game)
	if err != nil {
		core.LogFatal("creating engine: %+v", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("initializing engine: %+v", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the loop owns the main thread, so the signal only asks it to stop
	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %v", err)
	}
	if runErr != nil {
		core.LogFatal("%+v", runErr)
	}
}
