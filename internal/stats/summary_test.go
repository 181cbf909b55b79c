// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package stats

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSummary_Print(t *testing.T) {
	s := New()
	s.NodesRead = 10
	s.NodesWritten = 8
	s.NodesWithElevation = 5
	s.NodesWithElevationNotFound = 3
	s.NodesWithSingleCountry = 7
	s.BumpElevationSource("srtm")
	s.BumpElevationSource("srtm")
	s.BumpElevationSource("gmted")

	var buf bytes.Buffer
	s.Print(&buf)
	out := buf.String()

	for _, want := range []string{
		"nodes read:               10",
		"nodes written:            8",
		"nodes with elevation:     5",
		"nodes with one country:       7",
		"srtm",
		"gmted",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Print() output missing %q, got:\n%s", want, out)
		}
	}
}

func TestSummary_Print_TruncationNote(t *testing.T) {
	s := New()
	s.ReferencedNodes = 100
	s.NodesWritten = 97

	var buf bytes.Buffer
	s.Print(&buf)
	out := buf.String()
	if !strings.Contains(out, "clipped extract") {
		t.Errorf("Print() missing truncation note, got:\n%s", out)
	}
	if !strings.Contains(out, "3 node id(s)") {
		t.Errorf("Print() missing dangling-ref count, got:\n%s", out)
	}
}

func TestSummary_Print_NoTruncationNoteWhenComplete(t *testing.T) {
	s := New()
	s.ReferencedNodes = 100
	s.NodesWritten = 100

	var buf bytes.Buffer
	s.Print(&buf)
	if strings.Contains(buf.String(), "clipped extract") {
		t.Errorf("Print() should not mention a clipped extract when all references resolved")
	}
}

func TestSummary_WriteTextfile(t *testing.T) {
	s := New()
	s.NodesRead = 42
	s.BumpElevationSource("srtm")

	dir := t.TempDir()
	path := filepath.Join(dir, "osm-transform.prom")
	if err := s.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "osm_transform_nodes_read_total 42") {
		t.Errorf("textfile missing nodes_read_total, got:\n%s", out)
	}
	if !strings.Contains(out, `source="srtm"`) {
		t.Errorf("textfile missing source label, got:\n%s", out)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("tmp file should have been renamed away, stat err = %v", err)
	}
}
