package cmd

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestReportRegions(t *testing.T) {
	s := testSession(t, "ingresos")
	all, err := s.reportRegions("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(all, []int{2, 5}) {
		t.Errorf("all regions = %v", all)
	}
	some, err := s.reportRegions("Valparaíso, 2")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(some, []int{5, 2}) {
		t.Errorf("listed regions = %v", some)
	}
	if _, err := s.reportRegions("5,Atlantis"); err == nil {
		t.Error("reportRegions accepted an unknown region")
	}
}

func TestWriteAndMergeReports(t *testing.T) {
	s := testSession(t, "ingresos")
	dir := t.TempDir()

	var files []string
	var pages int
	for _, region := range []string{"5", "2"} {
		path := filepath.Join(dir, "region_"+region+".pdf")
		if err := s.writeRegionReport(path, region, 0, 0); err != nil {
			t.Fatalf("region %s: %v", region, err)
		}
		n, err := pdfPageCount(path)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("region %s pages = %d, want summary + chart", region, n)
		}
		files = append(files, path)
		pages += n
	}

	out := filepath.Join(dir, "brechas.pdf")
	if err := mergeReports(files, out, pages); err != nil {
		t.Fatal(err)
	}
	if err := mergeReports(files, filepath.Join(dir, "again.pdf"), pages+1); err == nil {
		t.Error("mergeReports did not notice a page count mismatch")
	}
}

func TestSummaryValues(t *testing.T) {
	s := testSession(t, "dependencia")
	title, sub, rows, err := s.summary("5", 2021)
	if err != nil {
		t.Fatal(err)
	}
	if title != "Dependencia - Valparaíso" || sub == "" {
		t.Errorf("title = %q, sub = %q", title, sub)
	}
	if len(rows) != 3 || rows[0].name != "Cartagena" || !rows[0].ok {
		t.Errorf("rows = %+v", rows)
	}
}
