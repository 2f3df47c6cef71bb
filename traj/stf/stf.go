/*
 * stf.go, part of gostring.
 *
 * Copyright 2024 Raul Mera Adasme <rauldotmeraatusachdotcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package stf

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rmera/gostring/gsm"
)

// DefaultPrec is the precision used if none is given in the header.
const DefaultPrec = 4

// Writer writes string snapshots to a file. It implements gsm.SnapshotWriter.
type Writer struct {
	f         *os.File
	h         io.WriteCloser
	b         *bufio.Writer
	natoms    int
	filename  string
	writeable bool
	prec      int
}

// NewWriter creates the file name and writes the header to it. header may be nil.
// A "prec" key in header sets the precision of the coordinates.
func NewWriter(name string, natoms int, header map[string]string) (*Writer, error) {
	if natoms <= 0 {
		return nil, Error{message: fmt.Sprintf("invalid number of atoms %d", natoms), filename: name, deco: []string{"NewWriter"}, critical: true}
	}
	S := &Writer{filename: name, natoms: natoms, prec: DefaultPrec}
	if p, ok := header["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err != nil || prec <= 0 {
			return nil, Error{message: "invalid precision " + p, filename: name, deco: []string{"NewWriter"}, critical: true}
		}
		S.prec = prec
	}
	var err error
	S.f, err = os.Create(name)
	if err != nil {
		return nil, Error{message: UnableToOpen, filename: name, deco: []string{"NewWriter"}, critical: true, cause: err}
	}
	if gzipped(name) {
		S.h = gzip.NewWriter(S.f)
	} else {
		S.h, err = zstd.NewWriter(S.f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			S.f.Close()
			return nil, Error{message: "can't start the compressor", filename: name, deco: []string{"NewWriter"}, critical: true, cause: err}
		}
	}
	S.b = bufio.NewWriter(S.h)
	S.writeable = true
	fmt.Fprintf(S.b, "prec=%d\n", S.prec)
	keys := make([]string, 0, len(header))
	for k := range header {
		if k != "prec" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(S.b, "%s=%s\n", k, header[k])
	}
	fmt.Fprintf(S.b, "** %d\n", S.natoms)
	return S, nil
}

func gzipped(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "z")
}

// Len returns the number of atoms per node.
func (S *Writer) Len() int { return S.natoms }

// WriteSnapshot appends s to the file.
func (S *Writer) WriteSnapshot(s *gsm.Snapshot) error {
	if !S.writeable {
		return Error{message: TrajUnIniWrite, filename: S.filename, deco: []string{"WriteSnapshot"}, critical: true}
	}
	if s == nil {
		return Error{message: NilSnapshot, filename: S.filename, deco: []string{"WriteSnapshot"}, critical: true}
	}
	if len(s.Energies) != len(s.Geometries) || len(s.GradRMS) != len(s.Geometries) {
		return Error{message: "inconsistent snapshot", filename: S.filename, deco: []string{"WriteSnapshot"}, critical: true}
	}
	fmt.Fprintf(S.b, "> %s %d %d %d\n", s.Stage, s.Iteration, s.TSNode, len(s.Geometries))
	p := math.Pow(10, float64(S.prec))
	for i, g := range s.Geometries {
		if len(g) != 3*S.natoms {
			return Error{message: fmt.Sprintf("node %d has %d coordinates, %d expected", i, len(g), 3*S.natoms), filename: S.filename, deco: []string{"WriteSnapshot"}, critical: true}
		}
		for j := 0; j < len(g); j += 3 {
			fmt.Fprintf(S.b, "%d %d %d\n", int(math.RoundToEven(g[j]*p)), int(math.RoundToEven(g[j+1]*p)), int(math.RoundToEven(g[j+2]*p)))
		}
		fmt.Fprintf(S.b, "* %.6f %.8f\n", s.Energies[i], s.GradRMS[i])
	}
	if err := S.b.Flush(); err != nil {
		return Error{message: "can't write snapshot", filename: S.filename, deco: []string{"WriteSnapshot"}, critical: true, cause: err}
	}
	return nil
}

// Close flushes and closes the file. The Writer can't be used afterwards.
func (S *Writer) Close() error {
	if S == nil || !S.writeable {
		return nil
	}
	S.writeable = false
	err := S.b.Flush()
	if e := S.h.Close(); err == nil {
		err = e
	}
	if e := S.f.Close(); err == nil {
		err = e
	}
	if err != nil {
		return Error{message: "can't close file", filename: S.filename, deco: []string{"Close"}, critical: true, cause: err}
	}
	return nil
}

// Reader reads string snapshots from a file.
type Reader struct {
	f        *os.File
	dec      io.ReadCloser
	h        *bufio.Reader
	natoms   int
	filename string
	prec     int
	readable bool
}

type zstdCloser struct {
	*zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// Open opens the file name for reading, and returns the reader and the header.
func Open(name string) (*Reader, map[string]string, error) {
	S := &Reader{filename: name, prec: DefaultPrec}
	var err error
	S.f, err = os.Open(name)
	if err != nil {
		return nil, nil, Error{message: UnableToOpen, filename: name, deco: []string{"Open"}, critical: true, cause: err}
	}
	in := bufio.NewReader(S.f)
	if gzipped(name) {
		S.dec, err = gzip.NewReader(in)
	} else {
		var d *zstd.Decoder
		d, err = zstd.NewReader(in)
		if err == nil {
			S.dec = zstdCloser{d}
		}
	}
	if err != nil {
		S.f.Close()
		return nil, nil, Error{message: "can't start the decompressor", filename: name, deco: []string{"Open"}, critical: true, cause: err}
	}
	S.h = bufio.NewReader(S.dec)
	m := make(map[string]string)
	for {
		str, err := S.h.ReadString('\n')
		if err != nil {
			S.close()
			return nil, nil, Error{message: "can't read header", filename: name, deco: []string{"Open"}, critical: true, cause: err}
		}
		str = strings.TrimSuffix(str, "\n")
		if strings.HasPrefix(str, "**") {
			f := strings.Fields(str)
			if len(f) < 2 {
				S.close()
				return nil, nil, Error{message: "can't read the number of atoms from " + str, filename: name, deco: []string{"Open"}, critical: true}
			}
			S.natoms, err = strconv.Atoi(f[1])
			if err != nil || S.natoms <= 0 {
				S.close()
				return nil, nil, Error{message: "can't read the number of atoms from " + str, filename: name, deco: []string{"Open"}, critical: true, cause: err}
			}
			break
		}
		k, v, ok := strings.Cut(str, "=")
		if !ok {
			S.close()
			return nil, nil, Error{message: "malformed header line " + str, filename: name, deco: []string{"Open"}, critical: true}
		}
		m[k] = v
	}
	if p, ok := m["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err != nil || prec <= 0 {
			S.close()
			return nil, nil, Error{message: "invalid precision " + p, filename: name, deco: []string{"Open"}, critical: true}
		}
		S.prec = prec
	}
	S.readable = true
	return S, m, nil
}

// Len returns the number of atoms per node.
func (S *Reader) Len() int { return S.natoms }

// Readable is true if Next can be called.
func (S *Reader) Readable() bool { return S.readable }

// Next returns the next snapshot in the file. At the end of the file it
// returns io.EOF, and closes the reader.
func (S *Reader) Next() (*gsm.Snapshot, error) {
	if !S.readable {
		return nil, Error{message: TrajUnIniRead, filename: S.filename, deco: []string{"Next"}, critical: true}
	}
	line, err := S.h.ReadString('\n')
	if errors.Is(err, io.EOF) && line == "" {
		S.Close()
		return nil, io.EOF
	}
	if err != nil {
		return nil, Error{message: ReadError, filename: S.filename, deco: []string{"Next"}, critical: true, cause: err}
	}
	f := strings.Fields(line)
	if len(f) != 5 || f[0] != ">" {
		return nil, Error{message: WrongFormat + ": " + strings.TrimSpace(line), filename: S.filename, deco: []string{"Next"}, critical: true}
	}
	s := &gsm.Snapshot{Stage: f[1]}
	var nodes int
	ints := []*int{&s.Iteration, &s.TSNode, &nodes}
	for i, v := range f[2:] {
		if *ints[i], err = strconv.Atoi(v); err != nil {
			return nil, Error{message: WrongFormat + ": " + strings.TrimSpace(line), filename: S.filename, deco: []string{"Next"}, critical: true, cause: err}
		}
	}
	p := math.Pow(10, float64(S.prec))
	for node := 0; node < nodes; node++ {
		g := make([]float64, 3*S.natoms)
		for i := 0; i < S.natoms; i++ {
			l, err := S.h.ReadString('\n')
			if err != nil {
				return nil, Error{message: ReadError, filename: S.filename, deco: []string{"Next"}, critical: true, cause: err}
			}
			if err := coordsDecode(l, g[3*i:3*i+3], p); err != nil {
				return nil, Error{message: WrongFormat, filename: S.filename, deco: []string{"Next"}, critical: true, cause: err}
			}
		}
		l, err := S.h.ReadString('\n')
		if err != nil {
			return nil, Error{message: ReadError, filename: S.filename, deco: []string{"Next"}, critical: true, cause: err}
		}
		ef := strings.Fields(l)
		if len(ef) != 3 || ef[0] != "*" {
			return nil, Error{message: "wrong number of atoms in frame", filename: S.filename, deco: []string{"Next"}, critical: true}
		}
		e, err1 := strconv.ParseFloat(ef[1], 64)
		gr, err2 := strconv.ParseFloat(ef[2], 64)
		if err := errors.Join(err1, err2); err != nil {
			return nil, Error{message: WrongFormat, filename: S.filename, deco: []string{"Next"}, critical: true, cause: err}
		}
		s.Geometries = append(s.Geometries, g)
		s.Energies = append(s.Energies, e)
		s.GradRMS = append(s.GradRMS, gr)
	}
	return s, nil
}

func coordsDecode(str string, dst []float64, p float64) error {
	s := strings.Fields(str)
	if len(s) != 3 {
		return fmt.Errorf("ill formated coordinates line: %q", str)
	}
	for i, v := range s {
		c, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("can't parse coordinate %d (%s): %w", i, v, err)
		}
		dst[i] = float64(c) / p
	}
	return nil
}

// Close closes the reader, which can't be used afterwards.
func (S *Reader) Close() {
	if !S.readable {
		return
	}
	S.readable = false
	S.close()
}

func (S *Reader) close() {
	S.dec.Close()
	S.f.Close()
}

// Last returns the last snapshot in the file name, and the header.
func Last(name string) (*gsm.Snapshot, map[string]string, error) {
	r, m, err := Open(name)
	if err != nil {
		return nil, nil, errDecorate(err, "Last")
	}
	var last *gsm.Snapshot
	for {
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.Close()
			return nil, nil, errDecorate(err, "Last")
		}
		last = s
	}
	if last == nil {
		return nil, nil, Error{message: "no snapshots in file", filename: name, deco: []string{"Last"}, critical: true}
	}
	return last, m, nil
}

// errDecorate adds caller to the decorations of stf errors.
func errDecorate(err error, caller string) error {
	var e Error
	if errors.As(err, &e) {
		e.deco = append(e.deco, caller)
		return e
	}
	return err
}

// Error is the error type for the stf package.
type Error struct {
	message  string
	filename string //the file that has problems, or empty string if none.
	deco     []string
	critical bool
	cause    error
}

func (err Error) Error() string {
	s := fmt.Sprintf("stf file %s error: %s", err.filename, err.message)
	if err.cause != nil {
		s += ": " + err.cause.Error()
	}
	if len(err.deco) > 0 {
		s += " (" + strings.Join(err.deco, " < ") + ")"
	}
	return s
}

// Decorate adds new information to the error
func (err *Error) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

// FileName returns the file to which the failing trajectory was associated
func (err Error) FileName() string { return err.filename }

// Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

func (err Error) Unwrap() error { return err.cause }

const (
	TrajUnIniRead  = "Traj object uninitialized to read"
	TrajUnIniWrite = "Traj object uninitialized to write"
	ReadError      = "Error reading snapshot"
	UnableToOpen   = "Unable to open file"
	NilSnapshot    = "Given nil snapshot"
	WrongFormat    = "Wrong format in the STF file or snapshot"
)
