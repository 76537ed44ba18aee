// Copyright (c) 2024, The lbtlora Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.


// Package framelog keeps a SQLite log of the frames a gateway received.
package framelog

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS frames (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	at        INTEGER NOT NULL,
	dst       INTEGER NOT NULL,
	type      INTEGER NOT NULL,
	src       INTEGER NOT NULL,
	seq       INTEGER NOT NULL,
	payload   BLOB    NOT NULL,
	snr       INTEGER NOT NULL,
	rssi      INTEGER NOT NULL,
	sf        INTEGER NOT NULL,
	bw        INTEGER NOT NULL,
	cr        INTEGER NOT NULL,
	frequency INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS frames_src_at ON frames(src, at);
`

// Record is one logged frame.
type Record struct {
	ID        int64
	At        time.Time
	Frame     *radio.Frame
	Params    radio.ModemParams
	Frequency uint64
}

// SourceStats aggregates the frames of one source node.
type SourceStats struct {
	Src      types.NodeAddr
	Frames   int
	LastSeen time.Time
	AvgSNR   float64
	AvgRSSI  float64
}

// Log is an open frame log.
type Log struct {
	db *sql.DB
}

// Open opens or creates the log at path.
func Open(ctx context.Context, path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite db")
	}
	if _, err = db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set wal mode")
	}
	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	return &Log{db: db}, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

// Insert appends rec and returns its id.
func (l *Log) Insert(ctx context.Context, rec Record) (int64, error) {
	f, p := rec.Frame, rec.Params
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO frames(at, dst, type, src, seq, payload, snr, rssi, sf, bw, cr, frequency)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.At.UnixMilli(), int(f.Dst), int(f.Type), int(f.Src), int(f.Seq), payloadBlob(f.Payload), f.SNR, f.RSSI,
		int(p.SpreadingFactor), int64(p.Bandwidth), int(p.CodingRate), int64(rec.Frequency))
	if err != nil {
		return 0, errors.Wrap(err, "insert frame")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "get frame id")
	}
	return id, nil
}

func payloadBlob(p []byte) []byte {
	if p == nil {
		return []byte{}
	}
	return p
}

// Recent returns up to limit of the latest frames, oldest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, at, dst, type, src, seq, payload, snr, rssi, sf, bw, cr, frequency
		FROM frames
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list frames")
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Record
	for rows.Next() {
		var (
			rec                Record
			at, bw, freq       int64
			dst, typ, src, seq int
			sf, cr             int
			f                  radio.Frame
		)
		if err = rows.Scan(&rec.ID, &at, &dst, &typ, &src, &seq, &f.Payload, &f.SNR, &f.RSSI, &sf, &bw, &cr, &freq); err != nil {
			return nil, errors.Wrap(err, "scan frame")
		}
		f.Dst, f.Type, f.Src, f.Seq = types.NodeAddr(dst), types.PacketType(typ), types.NodeAddr(src), byte(seq)
		rec.At = time.UnixMilli(at).UTC()
		rec.Frame = &f
		rec.Params = radio.ModemParams{
			SpreadingFactor: types.SpreadingFactor(sf),
			Bandwidth:       types.Bandwidth(bw),
			CodingRate:      types.CodingRate(cr),
		}
		rec.Frequency = uint64(freq)
		out = append(out, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate frames")
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Sources aggregates the log per source node, most recently heard first.
func (l *Log) Sources(ctx context.Context) ([]SourceStats, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT src, COUNT(*), MAX(at), AVG(snr), AVG(rssi)
		FROM frames
		GROUP BY src
		ORDER BY MAX(at) DESC, src
	`)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate sources")
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []SourceStats
	for rows.Next() {
		var (
			s    SourceStats
			src  int
			last int64
		)
		if err = rows.Scan(&src, &s.Frames, &last, &s.AvgSNR, &s.AvgRSSI); err != nil {
			return nil, errors.Wrap(err, "scan source")
		}
		s.Src = types.NodeAddr(src)
		s.LastSeen = time.UnixMilli(last).UTC()
		out = append(out, s)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate sources")
	}
	return out, nil
}

// Prune deletes frames received before t and returns how many were removed.
func (l *Log) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM frames WHERE at < ?`, before.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "prune frames")
	}
	return res.RowsAffected()
}
