// Command duskrelayd runs the duskrelay forward proxy and its companion
// DNS resolver as a single process: a dual-protocol (SOCKS5 + HTTP)
// proxy listener, a DNS server consulting a static hosts table before
// falling back to an upstream resolver, and optional admin/audit
// surfaces.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/duskrelay/duskrelay/internal/adminapi"
	"github.com/duskrelay/duskrelay/internal/audit"
	"github.com/duskrelay/duskrelay/internal/config"
	"github.com/duskrelay/duskrelay/internal/dispatcher"
	"github.com/duskrelay/duskrelay/internal/dnsserver"
	"github.com/duskrelay/duskrelay/internal/hosts"
	"github.com/duskrelay/duskrelay/internal/httpproxy"
	"github.com/duskrelay/duskrelay/internal/logging"
	"github.com/duskrelay/duskrelay/internal/nat"
	"github.com/duskrelay/duskrelay/internal/proxyserver"
	"github.com/duskrelay/duskrelay/internal/resolver"
	"github.com/duskrelay/duskrelay/internal/socksserver"
	"github.com/duskrelay/duskrelay/internal/upstream"
)

// cliFlags holds parsed command-line flag values. Flags are the
// highest-precedence configuration source and are applied last, after
// the file/env/defaults layers.
type cliFlags struct {
	config   string
	host     string
	port     int
	username string
	password string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.config, "config", "", "path to YAML config file (defaults to $DUSKRELAY_CONFIG)")
	flag.StringVar(&f.host, "host", "", "override proxy bind host")
	flag.IntVar(&f.port, "port", 0, "override proxy bind port")
	flag.StringVar(&f.username, "username", "", "override SOCKS5 username")
	flag.StringVar(&f.password, "password", "", "override SOCKS5 password")
	flag.Parse()
	return f
}

// applyCLIOverrides applies command-line overrides onto cfg.Proxy.
func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.host != "" {
		cfg.Proxy.ListenHost = f.host
	}
	if f.port != 0 {
		cfg.Proxy.ListenPort = f.port
	}
	if f.username != "" {
		cfg.Proxy.Username = f.username
	}
	if f.password != "" {
		cfg.Proxy.Password = f.password
	}
}

func main() {
	flags := parseFlags()

	cfg, err := config.Load(config.ResolveConfigPath(flags.config))
	if err != nil {
		fmt.Fprintf(os.Stderr, "duskrelayd: load config: %v\n", err)
		os.Exit(1)
	}
	applyCLIOverrides(cfg, flags)

	log := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hostsTable, err := hosts.Load(cfg.Dns.HostsPath)
	if err != nil {
		log.Warn("failed to load hosts file, continuing with an empty table", "path", cfg.Dns.HostsPath, "err", err)
		hostsTable = &hosts.Table{}
	}

	upstreamClient, err := upstream.New(cfg.Dns.ResolvConf)
	if err != nil {
		log.Error("failed to construct upstream DNS client", "err", err)
		os.Exit(1)
	}

	dnsResolver := resolver.New(hostsTable, upstreamClient)
	dnsSrv, err := dnsserver.New(cfg.Dns.ListenAddr, dnsResolver)
	if err != nil {
		log.Error("failed to bind DNS listener", "addr", cfg.Dns.ListenAddr, "err", err)
		os.Exit(1)
	}

	natTable := nat.Default()
	socksSrv := socksserver.New(cfg.Proxy.Username, cfg.Proxy.Password, natTable)
	httpSrv := httpproxy.New()
	disp := dispatcher.New(socksSrv, httpSrv)

	proxyAddr := net.JoinHostPort(cfg.Proxy.ListenHost, strconv.Itoa(cfg.Proxy.ListenPort))
	proxySrv, err := proxyserver.New(proxyAddr, disp)
	if err != nil {
		log.Error("failed to bind proxy listener", "addr", proxyAddr, "err", err)
		os.Exit(1)
	}

	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		auditLog, err = audit.Open(cfg.Audit.DBPath)
		if err != nil {
			log.Error("failed to open audit log", "path", cfg.Audit.DBPath, "err", err)
			os.Exit(1)
		}
		defer auditLog.Close()
		proxySrv.Audit = auditLog
	}

	var adminSrv *adminapi.Server
	if cfg.Admin.Enabled {
		adminAddr := net.JoinHostPort(cfg.Admin.Host, strconv.Itoa(cfg.Admin.Port))
		adminSrv = adminapi.New(adminAddr, natTable, hostsTable)
	}

	errc := make(chan error, 3)

	go func() {
		log.Info("dns server listening", "addr", dnsSrv.Addr().String())
		errc <- dnsSrv.Serve(ctx)
	}()

	go func() {
		log.Info("proxy server listening", "addr", proxySrv.Addr().String())
		errc <- proxySrv.Serve(ctx)
	}()

	if adminSrv != nil {
		go func() {
			log.Info("admin api listening", "addr", adminSrv.Addr())
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
				return
			}
			errc <- nil
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errc:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("server exited unexpectedly", "err", err)
			runErr = err
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = proxySrv.Close()
	_ = dnsSrv.Close()
	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("admin api shutdown error", "err", err)
		}
	}

	log.Info("duskrelayd stopped")
	if runErr != nil {
		os.Exit(1)
	}
}
