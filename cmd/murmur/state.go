package main

import (
	"context"
	"database/sql"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/murmur/internal/buffer"
	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/cycle"
	"github.com/hpungsan/murmur/internal/db"
	"github.com/hpungsan/murmur/internal/exclusion"
	"github.com/hpungsan/murmur/internal/generator"
	"github.com/hpungsan/murmur/internal/page"
)

// state is what every command shares: the database, config and the two
// persisted components.
type state struct {
	db      *sql.DB
	cfg     *config.Config
	dir     string
	log     *zap.Logger
	records *db.Records
	buf     *buffer.Buffer
	counter *exclusion.Counter
}

func newState(database *sql.DB, cfg *config.Config, dir string, log *zap.Logger) *state {
	if log == nil {
		log = zap.NewNop()
	}
	records := db.NewRecords(database)
	return &state{
		db:      database,
		cfg:     cfg,
		dir:     dir,
		log:     log,
		records: records,
		buf:     buffer.New(records, nil, buffer.OptionsFromConfig(cfg), log),
		counter: exclusion.New(records, exclusion.OptionsFromConfig(cfg), log),
	}
}

// worker is a Runner with its browser session.
type worker struct {
	runner    *cycle.Runner
	commenter *page.Commenter
}

func (w *worker) close() {
	w.runner.Wait()
	_ = w.commenter.Close()
}

// openWorker starts the browser and wires the generator, buffer and counter
// into a Runner. The worker's buffer owns the generator so cold start and
// background refills can reach it.
func (s *state) openWorker(ctx context.Context) (*worker, error) {
	gen, err := generator.NewOpenAI(s.cfg.LLM, generator.NewFallback(nil), s.log)
	if err != nil {
		return nil, err
	}

	rp, err := page.OpenRod(ctx, s.cfg.Browser)
	if err != nil {
		return nil, err
	}
	commenter := page.NewCommenter(rp, s.cfg.Browser, filepath.Join(s.dir, "screenshots"), s.log)

	buf := buffer.New(s.records, gen, buffer.OptionsFromConfig(s.cfg), s.log)
	runner := cycle.NewRunner(cycle.Deps{
		Source:    commenter,
		Buffer:    buf,
		Counter:   s.counter,
		Generator: gen,
		DB:        s.db,
		Target:    s.cfg.Browser.TargetURL,
		Logger:    s.log,
	}, cycle.ScheduleFromConfig(s.cfg))

	return &worker{runner: runner, commenter: commenter}, nil
}
