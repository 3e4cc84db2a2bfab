// Package persistence records swarm runs to SQLite for offline analysis. The
// simulation itself stays in memory; the recorder is a write-mostly consumer.
package persistence

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/swarm-ledger/internal/agents"
	"github.com/talgya/swarm-ledger/internal/engine"
	"github.com/talgya/swarm-ledger/internal/ledger"
)

// ErrNoRun is returned when recording before BeginRun.
var ErrNoRun = ierrors.New("no run started")

// Recorder wraps a SQLite connection holding recorded runs.
type Recorder struct {
	conn  *sqlx.DB
	runID string
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ierrors.Wrap(err, "create db dir")
		}
	}

	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, ierrors.Wrap(err, "open db")
	}
	conn.SetMaxOpenConns(1)

	r := &Recorder{conn: conn}
	if err := r.migrate(); err != nil {
		_ = conn.Close()
		return nil, ierrors.Wrap(err, "migrate")
	}

	return r, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	return r.conn.Close()
}

// RunID returns the id of the run being recorded, empty before BeginRun.
func (r *Recorder) RunID() string {
	return r.runID
}

func (r *Recorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_unix INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		grid_rows INTEGER NOT NULL,
		grid_cols INTEGER NOT NULL,
		mode TEXT NOT NULL,
		agents INTEGER NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ticks (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		coverage REAL NOT NULL,
		poi_score REAL NOT NULL,
		visit_mass INTEGER NOT NULL,
		ledger_blocks INTEGER NOT NULL,
		merges INTEGER NOT NULL,
		moves INTEGER NOT NULL,
		detections_json TEXT NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS blocks (
		run_id TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		issuer INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		tag TEXT NOT NULL,
		point_row INTEGER NOT NULL,
		point_col INTEGER NOT NULL,
		observer INTEGER NOT NULL,
		broadcaster INTEGER NOT NULL,
		time INTEGER NOT NULL,
		value REAL NOT NULL,
		parents_json TEXT NOT NULL,
		PRIMARY KEY (run_id, agent_id, issuer, seq)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_blocks_tag ON blocks(run_id, tag);
	`
	_, err := r.conn.Exec(schema)
	return err
}

// RunInfo describes one recorded run.
type RunInfo struct {
	ID          string `db:"id" json:"id"`
	StartedUnix int64  `db:"started_unix" json:"started_unix"`
	Seed        int64  `db:"seed" json:"seed"`
	Rows        int    `db:"grid_rows" json:"rows"`
	Cols        int    `db:"grid_cols" json:"cols"`
	Mode        string `db:"mode" json:"mode"`
	Agents      int    `db:"agents" json:"agents"`
	Config      string `db:"config_json" json:"config"`
}

// BeginRun stores a new run and makes it the target of later records. An
// empty ID gets a fresh UUID.
func (r *Recorder) BeginRun(info RunInfo) (string, error) {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.StartedUnix == 0 {
		info.StartedUnix = time.Now().Unix()
	}
	if info.Config == "" {
		info.Config = "{}"
	}

	_, err := r.conn.NamedExec(`INSERT INTO runs
		(id, started_unix, seed, grid_rows, grid_cols, mode, agents, config_json)
		VALUES (:id, :started_unix, :seed, :grid_rows, :grid_cols, :mode, :agents, :config_json)`, info)
	if err != nil {
		return "", ierrors.Wrap(err, "insert run")
	}

	r.runID = info.ID
	slog.Info("recording run", "run_id", info.ID, "seed", info.Seed)
	return info.ID, nil
}

// Runs lists recorded runs, newest first.
func (r *Recorder) Runs() ([]RunInfo, error) {
	var runs []RunInfo
	err := r.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_unix DESC, id")
	return runs, err
}

// TickRow is one recorded tick summary.
type TickRow struct {
	Tick         int64   `db:"tick" json:"tick"`
	Coverage     float64 `db:"coverage" json:"coverage"`
	POIScore     float64 `db:"poi_score" json:"poi_score"`
	VisitMass    int64   `db:"visit_mass" json:"visit_mass"`
	LedgerBlocks int64   `db:"ledger_blocks" json:"ledger_blocks"`
	Merges       int64   `db:"merges" json:"merges"`
	Moves        int64   `db:"moves" json:"moves"`
	Detections   string  `db:"detections_json" json:"detections"`
}

// RecordTick stores the statistics of one tick.
func (r *Recorder) RecordTick(stats engine.SimStats) error {
	if r.runID == "" {
		return ErrNoRun
	}
	detections, err := json.Marshal(stats.Detections)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(`INSERT OR REPLACE INTO ticks
		(run_id, tick, coverage, poi_score, visit_mass, ledger_blocks, merges, moves, detections_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, stats.Tick, stats.Coverage, stats.POIScore, stats.VisitMass,
		stats.LedgerBlocks, stats.Merges, stats.Moves, string(detections),
	)
	return err
}

// Ticks returns the recorded tick summaries of a run in tick order.
func (r *Recorder) Ticks(runID string) ([]TickRow, error) {
	var rows []TickRow
	err := r.conn.Select(&rows, `SELECT tick, coverage, poi_score, visit_mass, ledger_blocks, merges, moves, detections_json
		FROM ticks WHERE run_id = ? ORDER BY tick`, runID)
	return rows, err
}

// BlockRow is one ledger block as stored.
type BlockRow struct {
	AgentID     int64   `db:"agent_id" json:"agent_id"`
	Issuer      int64   `db:"issuer" json:"issuer"`
	Seq         int64   `db:"seq" json:"seq"`
	Tag         string  `db:"tag" json:"tag"`
	PointRow    int     `db:"point_row" json:"point_row"`
	PointCol    int     `db:"point_col" json:"point_col"`
	Observer    int64   `db:"observer" json:"observer"`
	Broadcaster int64   `db:"broadcaster" json:"broadcaster"`
	Time        int64   `db:"time" json:"time"`
	Value       float64 `db:"value" json:"value"`
	Parents     string  `db:"parents_json" json:"parents"`
}

// SaveLedger writes an agent's full ledger (replacing any earlier copy).
func (r *Recorder) SaveLedger(agent agents.AgentID, blocks []*ledger.Block) error {
	if r.runID == "" {
		return ErrNoRun
	}

	tx, err := r.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM blocks WHERE run_id = ? AND agent_id = ?", r.runID, agent); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO blocks
		(run_id, agent_id, issuer, seq, tag, point_row, point_col, observer, broadcaster, time, value, parents_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range blocks {
		parents, err := json.Marshal(b.Parents)
		if err != nil {
			return err
		}
		_, err = stmt.Exec(r.runID, agent, b.ID.Issuer, b.ID.Seq, string(b.Tag),
			b.Meta.Point.Row, b.Meta.Point.Col, b.Meta.Observer, b.Meta.Broadcaster,
			b.Meta.Time, b.Meta.Value, string(parents))
		if err != nil {
			return ierrors.Wrapf(err, "insert block %s", b.ID)
		}
	}

	return tx.Commit()
}

// LedgerBlocks returns an agent's recorded blocks ordered by issuer and sequence.
func (r *Recorder) LedgerBlocks(runID string, agent agents.AgentID) ([]BlockRow, error) {
	var rows []BlockRow
	err := r.conn.Select(&rows, `SELECT agent_id, issuer, seq, tag, point_row, point_col, observer, broadcaster, time, value, parents_json
		FROM blocks WHERE run_id = ? AND agent_id = ? ORDER BY issuer, seq`, runID, agent)
	return rows, err
}

// SaveMeta stores a key-value pair.
func (r *Recorder) SaveMeta(key, value string) error {
	_, err := r.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (r *Recorder) GetMeta(key string) (string, error) {
	var value string
	err := r.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// SaveSimulation writes every agent's ledger and the last tick.
func (r *Recorder) SaveSimulation(sim *engine.Simulation) error {
	summaries := sim.AgentSummaries()
	slog.Info("saving run state", "run_id", r.runID, "agents", len(summaries))

	for _, s := range summaries {
		if err := sim.ValidateLedger(s.ID); err != nil {
			return ierrors.Wrapf(err, "ledger of agent %d", s.ID)
		}
		blocks, err := sim.AgentLedger(s.ID)
		if err != nil {
			return err
		}
		if err := r.SaveLedger(s.ID, blocks); err != nil {
			return ierrors.Wrapf(err, "save ledger of agent %d", s.ID)
		}
	}
	if err := r.SaveMeta("last_tick", strconv.FormatUint(sim.CurrentTick(), 10)); err != nil {
		return ierrors.Wrap(err, "save meta")
	}

	slog.Info("run state saved", "run_id", r.runID)
	return nil
}
