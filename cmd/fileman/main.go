package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	commonlog "filevault/server/common/log"
	filemanapp "filevault/server/fileman/app"
)

func main() {
	cfg := filemanapp.LoadConfig()
	server, err := filemanapp.NewServer(cfg)
	if err != nil {
		log.Fatalf("initialize fileman server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server.Start(ctx)
	go func() {
		commonlog.Infof("start fileman http server on :%s", cfg.Port)
		if err := server.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("run fileman http server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		commonlog.Errorf("shutdown fileman server gracefully: %v", err)
	}
}
