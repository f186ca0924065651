package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockwatch/pkg/alert"
	"stockwatch/pkg/api"
	"stockwatch/pkg/browser"
	"stockwatch/pkg/config"
	"stockwatch/pkg/history"
	"stockwatch/pkg/monitor"
	"stockwatch/pkg/scrapers/canadiantire"
	"stockwatch/pkg/snapshot"
)

func main() {
	once := flag.Bool("once", false, "run a single check pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		log.Fatalf("Failed to create export dir: %v", err)
	}

	hist, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		log.Fatalf("Failed to open history log: %v", err)
	}
	defer hist.Close()
	log.Printf("History log at %s", cfg.HistoryDBPath)

	session, err := browser.NewSession(cfg.Headless, cfg.UserAgent)
	if err != nil {
		log.Fatalf("Failed to start browser: %v", err)
	}
	defer session.Close()

	mon := monitor.New(
		monitor.Config{
			Products:    cfg.Products,
			Stores:      cfg.Stores,
			Interval:    cfg.Interval,
			SettleDelay: cfg.SettleDelay,
			StorePause:  cfg.StorePause,
			ExportDir:   cfg.ExportDir,
		},
		session.Page(),
		canadiantire.NewScraper(canadiantire.DefaultRetryPolicy()),
		snapshot.NewStore(),
		alert.NewDispatcher(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, cfg.Recipients),
		hist,
		canadiantire.NewProbe(cfg.UserAgent),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := mon.CheckAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("Check failed: %v", err)
		}
		return
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewHandler(hist, cfg.Products, "./"),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		printAccessURLs(cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Status server failed: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("Monitoring %d product(s) across %d store target(s) every %v",
		len(cfg.Products), len(cfg.Stores), cfg.Interval)

	if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Monitor stopped: %v", err)
	}
}

func printAccessURLs(addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		port = addr
	}
	if ip := outboundIP(); ip != nil {
		fmt.Printf("Local Network URL: http://%s:%s\n", ip.String(), port)
	}
	fmt.Printf("Access URL: http://localhost:%s\n", port)
	fmt.Printf("API Docs: http://localhost:%s/\n", port)
}

func outboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		addrs, _ := net.InterfaceAddrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				return ipnet.IP
			}
		}
		return nil
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP
}
