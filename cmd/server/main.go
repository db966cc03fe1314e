package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	log15 "gopkg.in/inconshreveable/log15.v2"

	"buildgen.ai/internal/host/memscene"
	persistlog "buildgen.ai/internal/persistence/log"
	"buildgen.ai/internal/persistence/profile"
	"buildgen.ai/internal/sim/editor"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/templates"
	"buildgen.ai/internal/sim/tuning"
	"buildgen.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "building template catalog directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		prefsPath  = flag.String("prefs", "", "path to the preferences db (default: <data>/prefs.db)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (journal + catalog + snapshot metadata)")
		logLevel   = flag.String("log_level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := log15.New("svc", "server")
	lvl, err := log15.LvlFromString(*logLevel)
	if err != nil {
		lvl = log15.LvlInfo
	}
	logger.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stdout, log15.LogfmtFormat())))
	fatal := func(msg string, ctx ...interface{}) {
		logger.Crit(msg, ctx...)
		os.Exit(1)
	}

	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fatal("load tuning", "path", tp, "err", err)
		}
		logger.Warn("tuning file missing, using defaults", "path", tp)
		tune = tuning.Defaults()
	}

	cat, err := templates.LoadCatalog(*configDir)
	if err != nil {
		fatal("load catalog", "dir", *configDir, "err", err)
	}
	logger.Info("catalog loaded", "templates", len(cat.ByID), "digest", cat.Digest)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		fatal("data dir", "err", err)
	}
	pp := *prefsPath
	if pp == "" {
		pp = filepath.Join(*dataDir, "prefs.db")
	}
	store, err := profile.Open(pp)
	if err != nil {
		fatal("open preferences", "path", pp, "err", err)
	}
	defer store.Close()

	scene := memscene.New()
	for _, id := range cat.IDs() {
		for _, bp := range cat.ByID[id].Blueprints() {
			if scene.Exists(bp) {
				continue
			}
			if err := scene.AddBlueprint(bp); err != nil {
				fatal("add blueprint", "blueprint", bp, "err", err)
			}
		}
	}

	mirror, err := buildMirror(*dataDir, logger.New("module", "mirror"))
	if err != nil {
		fatal("r2 mirror", "err", err)
	}
	// Closed after the journal so its last file is still uploaded.
	defer mirror.Close()

	var journals []generator.Journal
	if tune.Journal {
		var opts persistlog.LoggerOptions
		if mirror != nil {
			opts.OnClose = mirror.Enqueue
		}
		jl := persistlog.NewJournalLoggerWithOptions(*dataDir, opts)
		defer jl.Close()
		journals = append(journals, jl)
	}
	idx, err := openRuntimeIndex(*dataDir, *disableDB || !tune.Index, logger)
	if err != nil {
		fatal("index db", "err", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalog(cat, tune); err != nil {
			logger.Error("index catalog", "err", err)
		}
		journals = append(journals, idx)
	}

	gen := generator.New(scene,
		generator.WithLogger(logger.New("module", "generator")),
		generator.WithJournal(generator.Journals(journals...)),
	)
	var recs []editor.SnapshotRecorder
	if idx != nil {
		recs = append(recs, idx)
	}
	if mirror != nil {
		recs = append(recs, mirror)
	}
	rec := editor.Recorders(recs...)
	sess := editor.New(gen, store,
		editor.WithLogger(logger.New("module", "editor")),
		editor.WithTuning(tune),
		editor.WithSnapshots(filepath.Join(*dataDir, "snapshots"), rec),
		editor.WithArchive(filepath.Join(*dataDir, "archives")),
	)
	if err := installCatalog(sess, cat); err != nil {
		fatal("install catalog", "err", err)
	}
	restoreCurrent(sess, logger)

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := sess.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("editor stopped", "err", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP buildgen_templates Building templates in the catalog.\n")
		fmt.Fprintf(rw, "# TYPE buildgen_templates gauge\n")
		fmt.Fprintf(rw, "buildgen_templates %d\n", len(cat.ByID))

		if mirror != nil {
			ms := mirror.Stats()
			fmt.Fprintf(rw, "# HELP buildgen_mirror_uploads_total Mirror uploads by result.\n")
			fmt.Fprintf(rw, "# TYPE buildgen_mirror_uploads_total counter\n")
			fmt.Fprintf(rw, "buildgen_mirror_uploads_total{result=%q} %d\n", "ok", ms.UploadSuccessTotal)
			fmt.Fprintf(rw, "buildgen_mirror_uploads_total{result=%q} %d\n", "fail", ms.UploadFailTotal)
			fmt.Fprintf(rw, "buildgen_mirror_uploads_total{result=%q} %d\n", "dropped", ms.DroppedTotal)
			fmt.Fprintf(rw, "buildgen_mirror_queue_depth %d\n", ms.QueueDepth)
		}

		if idx == nil {
			return
		}
		st := idx.Stats()
		fmt.Fprintf(rw, "# HELP buildgen_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE buildgen_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "buildgen_index_queue_depth %d\n", st.QueueDepth)
		fmt.Fprintf(rw, "buildgen_index_queue_capacity %d\n", st.QueueCapacity)

		fmt.Fprintf(rw, "# HELP buildgen_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE buildgen_index_dropped_total counter\n")
		fmt.Fprintf(rw, "buildgen_index_dropped_total{kind=%q} %d\n", "journal", st.DropJournalTotal)
		fmt.Fprintf(rw, "buildgen_index_dropped_total{kind=%q} %d\n", "building", st.DropBuildingTotal)
	})
	if idx != nil {
		mux.HandleFunc("/v1/buildings", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			if err := idx.Flush(ctx2); err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rows, err := idx.ListBuildings(ctx2)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"buildings": rows})
		})
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(sess, tune, cat.Digest, logger.New("module", "ws")).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fatal("ListenAndServe", "err", err)
	}
}

// installCatalog adds every catalog template to the profile. When the
// profile's current template is not in the catalog, the first catalog
// template becomes current.
func installCatalog(sess *editor.Session, cat *templates.Catalog) error {
	prof := sess.Profile()
	for _, bt := range cat.ByID {
		prof.AddTemplate(bt)
	}
	ids := cat.IDs()
	if len(ids) == 0 {
		return nil
	}
	if _, ok := cat.ByID[prof.CurTemplate]; ok {
		return nil
	}
	return sess.SetTemplate(ids[0])
}

// restoreCurrent regenerates the profile's current building from the
// preferences db. The scene starts empty on every run.
func restoreCurrent(sess *editor.Session, logger log15.Logger) {
	id := sess.Profile().CurBuilding
	if id == "" || sess.Building() != nil {
		return
	}
	if err := sess.OpenBuilding(id); err != nil {
		logger.Warn("current building not restored", "building", id, "err", err)
		return
	}
	if err := sess.Refresh(); err != nil {
		logger.Warn("current building not regenerated", "building", id, "err", err)
		return
	}
	logger.Info("restored building", "building", id)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		host = strings.TrimSpace(remoteAddr)
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
