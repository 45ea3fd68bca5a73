/**
 * Call signaling orchestrator for federated messaging networks.
 * Copyright (C) 2026 CallGrid
 *
 * @license GNU AGPL version 3 or any later version
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dlintw/goconf"
	"github.com/gorilla/mux"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	signaling "github.com/callgrid/signaling"
)

var (
	version = "unreleased"

	configFlag  = flag.String("config", "server.conf", "config file to use")
	versionFlag = flag.Bool("version", false, "print version and quit")
)

// logListener writes call lifecycle changes to the log. Hosts embedding
// the library register their own listeners instead.
type logListener struct {
	log *zap.Logger
}

func (l *logListener) OnIncomingCall(call *signaling.CallSession) {
	l.log.Info("Incoming call",
		zap.String("callid", call.Id()),
		zap.String("roomid", call.SignalingRoomId()),
	)
}

func (l *logListener) OnCallHangup(call *signaling.CallSession) {
	l.log.Info("Call hung up",
		zap.String("callid", call.Id()),
	)
}

func (l *logListener) OnConferenceStarted(roomId string) {
	l.log.Info("Conference started",
		zap.String("roomid", roomId),
	)
}

func (l *logListener) OnConferenceFinished(roomId string) {
	l.log.Info("Conference finished",
		zap.String("roomid", roomId),
	)
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s\n", version)
		os.Exit(0)
	}

	fmt.Printf("Starting up version %s/%s as pid %d\n", version, runtime.Version(), os.Getpid())

	config, err := goconf.ReadConfigFile(*configFlag)
	if err != nil {
		fmt.Printf("Could not read configuration: %s\n", err)
		os.Exit(1)
	}

	var logConfig zap.Config
	if debug, _ := config.GetBool("app", "debug"); debug {
		logConfig = zap.NewDevelopmentConfig()
	} else {
		logConfig = zap.NewProductionConfig()
		logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	log, err := logConfig.Build(
		// Only log stack traces when panicing.
		zap.AddStacktrace(zap.DPanicLevel),
	)
	if err != nil {
		fmt.Printf("Could not create logger: %s\n", err)
		os.Exit(1)
	}

	restoreGlobalLogs := zap.ReplaceGlobals(log)
	defer restoreGlobalLogs()

	signaling.RegisterStats()

	localUserId, _ := signaling.GetStringOptionWithEnv(config, "app", "userid")
	if localUserId == "" {
		log.Fatal("No user id configured, set \"userid\" in section \"app\"")
	}

	natsUrl, _ := signaling.GetStringOptionWithEnv(config, "nats", "url")
	if natsUrl == "" {
		natsUrl = nats.DefaultURL
	}

	client, err := signaling.NewNatsClient(log, natsUrl)
	if err != nil {
		log.Fatal("Could not create NATS client",
			zap.Error(err),
		)
	}
	defer client.Close()

	callsConfig := signaling.NewCallsConfig(config)

	env := signaling.NewEnvironment(nil)
	backends := []signaling.CallBackend{
		signaling.NewHeadlessCallBackend(log),
	}
	registry := signaling.NewCallRegistry(log, env, backends, callsConfig.PreferredBackend)
	codec := signaling.NewConferenceIdCodec(callsConfig.ConferenceUserDomain)

	var turn *signaling.TurnCredentialsManager
	if len(callsConfig.TurnServers) > 0 {
		turn = signaling.NewTurnCredentialsManager(log,
			signaling.StaticTurnCredentials(callsConfig.TurnServers, callsConfig.TurnTTL),
			callsConfig.TurnRetryDelay)
	}

	manager := signaling.NewCallsManager(log, callsConfig, localUserId, nil, registry, codec, turn)
	defer manager.Close()
	manager.AddListener(&logListener{
		log: log,
	})
	if turn != nil {
		turn.Refresh()
	}

	subscriber, err := signaling.NewCallEventsSubscriber(log, client, localUserId, manager)
	if err != nil {
		log.Fatal("Could not subscribe to event stream",
			zap.Error(err),
		)
	}
	defer subscriber.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The daemon has no interactive surface that could become "ready",
	// drain buffered incoming calls periodically instead.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				manager.CheckPendingIncomingCalls()
			}
		}
	}()

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
	r.Handle("/debug/pprof/cmdline", http.HandlerFunc(pprof.Cmdline))
	r.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
	r.Handle("/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
	r.Handle("/debug/pprof/trace", http.HandlerFunc(pprof.Trace))

	listen, _ := config.GetString("http", "listen")
	if listen == "" {
		listen = "127.0.0.1:8080"
	}
	server := &http.Server{
		Addr:    listen,
		Handler: r,
	}
	go func() {
		log.Info("Listening",
			zap.String("addr", listen),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Could not start HTTP server",
				zap.Error(err),
			)
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server",
			zap.Error(err),
		)
	}
}
