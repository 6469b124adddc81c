package handler

import (
	"regexp"
	"strconv"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/lineage"
	"github.com/maraichr/docpipe/pkg/apierr"
)

var docIDRegex = regexp.MustCompile(`^[0-9a-f]{24}$`)

func validateDocID(docID string) *apierr.Error {
	if !docIDRegex.MatchString(docID) {
		return apierr.InvalidDocID()
	}
	return nil
}

func parseStage(s string) (contract.Stage, *apierr.Error) {
	stage, err := contract.ParseStage(s)
	if err != nil {
		return "", apierr.UnknownStage(s)
	}
	return stage, nil
}

// parseLimit reads an optional non-negative limit; empty means no limit.
func parseLimit(s string) (int, *apierr.Error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apierr.InvalidLimit()
	}
	return n, nil
}

var validDirections = map[string]bool{
	"upstream":   true,
	"downstream": true,
	"both":       true,
}

func validateDatasetURI(uri string) *apierr.Error {
	if _, err := lineage.DatasetFromURI(uri); err != nil {
		return apierr.InvalidDatasetURI()
	}
	return nil
}
