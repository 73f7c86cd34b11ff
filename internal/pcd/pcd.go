// Package pcd reads and writes structured point clouds as PCD v0.7
// files, the exchange format used for recorded range-sensor captures.
// The cloud's declared field layout maps directly onto the PCD
// FIELDS/SIZE/TYPE/COUNT header, and the structured grid round-trips
// through WIDTH and HEIGHT.
package pcd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/terrain.nav/internal/cloud"
)

// Format selects the DATA encoding of a written file.
type Format string

const (
	// ASCII writes one whitespace-separated line per point.
	ASCII Format = "ascii"
	// Binary writes packed little-endian point records.
	Binary Format = "binary"
)

// maxPoints caps the grid size accepted from a header. A hostile
// WIDTH/HEIGHT pair must produce an error, not an overflowing or
// enormous buffer allocation.
const maxPoints = 1 << 31

func typeLetter(k cloud.ScalarKind) (letter string, size int, err error) {
	switch k {
	case cloud.Int8, cloud.Int16, cloud.Int32:
		return "I", k.Size(), nil
	case cloud.Uint8, cloud.Uint16, cloud.Uint32:
		return "U", k.Size(), nil
	case cloud.Float32, cloud.Float64:
		return "F", k.Size(), nil
	}
	return "", 0, fmt.Errorf("pcd: scalar kind %s has no PCD type", k)
}

func kindFor(letter string, size int) (cloud.ScalarKind, error) {
	switch letter + strconv.Itoa(size) {
	case "I1":
		return cloud.Int8, nil
	case "U1":
		return cloud.Uint8, nil
	case "I2":
		return cloud.Int16, nil
	case "U2":
		return cloud.Uint16, nil
	case "I4":
		return cloud.Int32, nil
	case "U4":
		return cloud.Uint32, nil
	case "F4":
		return cloud.Float32, nil
	case "F8":
		return cloud.Float64, nil
	}
	return 0, fmt.Errorf("pcd: unsupported TYPE %s SIZE %d", letter, size)
}

// Write serialises the cloud to w in the requested format. Binary data
// is always written little-endian, the de-facto order of PCD files,
// regardless of the cloud's in-memory order.
func Write(w io.Writer, c *cloud.Cloud, format Format) error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("pcd: cloud has no declared fields")
	}
	var names, sizes, types, counts []string
	for _, f := range c.Fields {
		letter, size, err := typeLetter(f.Kind)
		if err != nil {
			return err
		}
		names = append(names, f.Name)
		sizes = append(sizes, strconv.Itoa(size))
		types = append(types, letter)
		counts = append(counts, strconv.Itoa(f.Count))
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "VERSION .7\n")
	fmt.Fprintf(bw, "FIELDS %s\n", strings.Join(names, " "))
	fmt.Fprintf(bw, "SIZE %s\n", strings.Join(sizes, " "))
	fmt.Fprintf(bw, "TYPE %s\n", strings.Join(types, " "))
	fmt.Fprintf(bw, "COUNT %s\n", strings.Join(counts, " "))
	fmt.Fprintf(bw, "WIDTH %d\n", c.Width)
	fmt.Fprintf(bw, "HEIGHT %d\n", c.Height)
	fmt.Fprintf(bw, "VIEWPOINT 0 0 0 1 0 0 0\n")
	fmt.Fprintf(bw, "POINTS %d\n", c.Len())
	fmt.Fprintf(bw, "DATA %s\n", format)

	switch format {
	case ASCII:
		if err := writeASCII(bw, c); err != nil {
			return err
		}
	case Binary:
		if err := writeBinary(bw, c); err != nil {
			return err
		}
	default:
		return fmt.Errorf("pcd: unknown format %q", format)
	}
	return bw.Flush()
}

func writeASCII(w io.Writer, c *cloud.Cloud) error {
	views := make([]cloud.ValueView, len(c.Fields))
	for fi, f := range c.Fields {
		v, err := c.Values(f.Name)
		if err != nil {
			return err
		}
		views[fi] = v
	}
	for i := 0; i < c.Len(); i++ {
		var sb strings.Builder
		for fi := range c.Fields {
			v := views[fi]
			for k := 0; k < v.Count(); k++ {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(strconv.FormatFloat(v.Elem(i, k), 'g', -1, 64))
			}
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

func writeBinary(w io.Writer, c *cloud.Cloud) error {
	if !c.BigEndian {
		// In-memory layout already matches the file layout: packed
		// little-endian records with no padding.
		_, err := w.Write(c.Data)
		return err
	}
	// Re-encode element-wise into little-endian records.
	out := cloud.New()
	out.BigEndian = false
	for _, f := range c.Fields {
		if err := out.AppendField(f.Name, f.Kind, f.Count); err != nil {
			return err
		}
	}
	if err := out.Resize(c.Height, c.Width); err != nil {
		return err
	}
	for _, f := range c.Fields {
		src, err := c.Values(f.Name)
		if err != nil {
			return err
		}
		dst, err := out.Values(f.Name)
		if err != nil {
			return err
		}
		for i := 0; i < c.Len(); i++ {
			for k := 0; k < f.Count; k++ {
				dst.SetElem(i, k, src.Elem(i, k))
			}
		}
	}
	_, err := w.Write(out.Data)
	return err
}

// Read parses a PCD v0.7 file into a structured cloud. The returned
// cloud records little-endian scalar order for binary payloads and host
// order for ascii ones; field views honor the recorded order either way.
func Read(r io.Reader) (*cloud.Cloud, error) {
	br := bufio.NewReader(r)

	var (
		names, types  []string
		sizes, counts []int
		data          string
	)
	width, height, points := -1, -1, -1
	for data == "" {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("pcd: truncated header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		key, args := fields[0], fields[1:]
		if len(args) == 0 && key != "VERSION" && key != "VIEWPOINT" {
			return nil, fmt.Errorf("pcd: header key %q without value", key)
		}
		switch key {
		case "VERSION", "VIEWPOINT":
			// Accepted and ignored.
		case "FIELDS":
			names = args
		case "TYPE":
			types = args
		case "SIZE":
			if sizes, err = atois(args); err != nil {
				return nil, fmt.Errorf("pcd: bad SIZE: %w", err)
			}
		case "COUNT":
			if counts, err = atois(args); err != nil {
				return nil, fmt.Errorf("pcd: bad COUNT: %w", err)
			}
		case "WIDTH":
			if width, err = strconv.Atoi(args[0]); err != nil {
				return nil, fmt.Errorf("pcd: bad WIDTH: %w", err)
			}
		case "HEIGHT":
			if height, err = strconv.Atoi(args[0]); err != nil {
				return nil, fmt.Errorf("pcd: bad HEIGHT: %w", err)
			}
		case "POINTS":
			if points, err = strconv.Atoi(args[0]); err != nil {
				return nil, fmt.Errorf("pcd: bad POINTS: %w", err)
			}
		case "DATA":
			data = args[0]
		default:
			return nil, fmt.Errorf("pcd: unknown header key %q", key)
		}
	}

	if len(names) == 0 || len(types) != len(names) || len(sizes) != len(names) {
		return nil, fmt.Errorf("pcd: inconsistent FIELDS/TYPE/SIZE header")
	}
	if len(counts) == 0 {
		counts = make([]int, len(names))
		for i := range counts {
			counts[i] = 1
		}
	} else if len(counts) != len(names) {
		return nil, fmt.Errorf("pcd: COUNT has %d entries for %d fields", len(counts), len(names))
	}
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("pcd: missing WIDTH or HEIGHT")
	}
	if width > maxPoints || height > maxPoints || int64(width)*int64(height) > maxPoints {
		return nil, fmt.Errorf("pcd: implausible grid %dx%d", width, height)
	}
	if points >= 0 && points != width*height {
		return nil, fmt.Errorf("pcd: POINTS %d != WIDTH*HEIGHT %d", points, width*height)
	}

	c := cloud.New()
	for i, name := range names {
		kind, err := kindFor(types[i], sizes[i])
		if err != nil {
			return nil, err
		}
		if err := c.AppendField(name, kind, counts[i]); err != nil {
			return nil, err
		}
	}

	switch data {
	case string(ASCII):
		if err := c.Resize(height, width); err != nil {
			return nil, err
		}
		if err := readASCII(br, c); err != nil {
			return nil, err
		}
	case string(Binary):
		c.BigEndian = false
		if err := c.Resize(height, width); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(br, c.Data); err != nil {
			return nil, fmt.Errorf("pcd: truncated binary data: %w", err)
		}
	default:
		return nil, fmt.Errorf("pcd: unsupported DATA encoding %q", data)
	}

	c.UpdateDense()
	return c, nil
}

func readASCII(br *bufio.Reader, c *cloud.Cloud) error {
	views := make([]cloud.ValueView, len(c.Fields))
	for fi, f := range c.Fields {
		v, err := c.Values(f.Name)
		if err != nil {
			return err
		}
		views[fi] = v
	}
	for i := 0; i < c.Len(); i++ {
		line, err := br.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			return fmt.Errorf("pcd: point %d: %w", i, err)
		}
		tokens := strings.Fields(line)
		ti := 0
		for fi := range c.Fields {
			v := views[fi]
			for k := 0; k < v.Count(); k++ {
				if ti >= len(tokens) {
					return fmt.Errorf("pcd: point %d has %d values, want more", i, len(tokens))
				}
				x, err := strconv.ParseFloat(tokens[ti], 64)
				if err != nil {
					return fmt.Errorf("pcd: point %d: %w", i, err)
				}
				v.SetElem(i, k, x)
				ti++
			}
		}
	}
	return nil
}

func atois(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

