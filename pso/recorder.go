package pso

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	// TblParticles is the sql table holding position and cost for every
	// particle at every epoch.
	TblParticles = "swarmparticles"
	// TblParticlesBest is the sql table holding each particle's personal
	// best at every epoch.
	TblParticlesBest = "swarmparticlesbest"
	// TblBest is the sql table holding the swarm best at every epoch.
	TblBest = "swarmbest"
)

// Recorder writes epoch-synchronous swarm state to a sql database.  It is
// written once per epoch, after bookkeeping, so every row set describes a
// consistent generation.
type Recorder struct {
	db   *sql.DB
	dims int
}

// NewRecorder wraps db.  Tables are created on first use.
func NewRecorder(db *sql.DB) *Recorder { return &Recorder{db: db} }

func (rec *Recorder) init(dims int) error {
	rec.dims = dims

	for _, tbl := range []string{TblParticles, TblParticlesBest} {
		s := "CREATE TABLE IF NOT EXISTS " + tbl + " (particle INTEGER, epoch INTEGER, cost REAL" + rec.xsql("define") + ");"
		if _, err := rec.db.Exec(s); err != nil {
			return errors.Wrapf(err, "pso: creating table %v", tbl)
		}
	}

	s := "CREATE TABLE IF NOT EXISTS " + TblBest + " (epoch INTEGER, cost REAL" + rec.xsql("define") + ");"
	if _, err := rec.db.Exec(s); err != nil {
		return errors.Wrapf(err, "pso: creating table %v", TblBest)
	}
	return nil
}

// xsql generates the per-dimension column fragments.
func (rec *Recorder) xsql(op string) string {
	s := ""
	for i := 0; i < rec.dims; i++ {
		switch op {
		case "?":
			s += ",?"
		case "define":
			s += fmt.Sprintf(",x%v REAL", i)
		case "x":
			s += fmt.Sprintf(",x%v", i)
		default:
			panic("invalid recorder op " + op)
		}
	}
	return s
}

func (rec *Recorder) record(epoch int, pos, bestPos *mat.Dense, cost, bestCost []float64, swarmBestCost float64, swarmBestPos []float64) error {
	tx, err := rec.db.Begin()
	if err != nil {
		return errors.Wrap(err, "pso: recorder begin")
	}
	defer tx.Rollback()

	s0 := "INSERT INTO " + TblParticles + " (particle,epoch,cost" + rec.xsql("x") + ") VALUES (?,?,?" + rec.xsql("?") + ");"
	s1 := "INSERT INTO " + TblParticlesBest + " (particle,epoch,cost" + rec.xsql("x") + ") VALUES (?,?,?" + rec.xsql("?") + ");"
	for i := range cost {
		args := []interface{}{i, epoch, cost[i]}
		args = append(args, pos2iface(pos.RawRowView(i))...)
		if _, err := tx.Exec(s0, args...); err != nil {
			return errors.Wrap(err, "pso: recording particle")
		}

		args = []interface{}{i, epoch, bestCost[i]}
		args = append(args, pos2iface(bestPos.RawRowView(i))...)
		if _, err := tx.Exec(s1, args...); err != nil {
			return errors.Wrap(err, "pso: recording particle best")
		}
	}

	s2 := "INSERT INTO " + TblBest + " (epoch,cost" + rec.xsql("x") + ") VALUES (?,?" + rec.xsql("?") + ");"
	args := []interface{}{epoch, swarmBestCost}
	args = append(args, pos2iface(swarmBestPos)...)
	if _, err := tx.Exec(s2, args...); err != nil {
		return errors.Wrap(err, "pso: recording swarm best")
	}
	return tx.Commit()
}

func pos2iface(pos []float64) []interface{} {
	iface := make([]interface{}, 0, len(pos))
	for _, v := range pos {
		iface = append(iface, v)
	}
	return iface
}
