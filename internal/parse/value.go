// Package parse coerces raw form input into the canonical text stored in a
// workbook cell for each field type.
package parse

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cmms-backend/internal/model"
)

var ErrInvalidValue = errors.New("invalid field value")

var (
	dateRe      = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:[ T].*)?$`)
	imageSepRe  = regexp.MustCompile(`[,;\n]+`)
	thousandsRe = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)
)

// Value returns the canonical cell text of raw for spec. An empty result means
// the field is absent.
func Value(spec model.FieldSpec, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}

	switch spec.Type {
	case model.FieldNumber:
		if thousandsRe.MatchString(s) {
			s = strings.ReplaceAll(s, ",", "")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("%w: %q is not a number", ErrInvalidValue, raw)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	case model.FieldDate:
		m := dateRe.FindStringSubmatch(s)
		if m == nil {
			return "", fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidValue, raw)
		}
		if _, err := time.Parse(time.DateOnly, m[1]); err != nil {
			return "", fmt.Errorf("%w: %q is not a valid date", ErrInvalidValue, raw)
		}
		return m[1], nil

	case model.FieldSingleSelect:
		if len(spec.Options) == 0 {
			return s, nil
		}
		for _, opt := range spec.Options {
			if s == opt {
				return s, nil
			}
		}
		return "", fmt.Errorf("%w: %q is not one of %v", ErrInvalidValue, raw, spec.Options)

	case model.FieldImageList:
		return JoinImages(SplitImages(s)), nil
	}
	return s, nil
}

// Fields coerces every value of in whose key is a field of mt. Keys that are
// not fields are passed through trimmed so the record store can reject them.
func Fields(mt model.MachineType, in map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(in))
	var errs []error
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		spec, ok := mt.Fields[k]
		if !ok {
			out[k] = strings.TrimSpace(in[k])
			continue
		}
		v, err := Value(spec, in[k])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		out[k] = v
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// SplitImages returns the image ids of a stored list, trimmed and without
// duplicates, in their original order.
func SplitImages(s string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, part := range imageSepRe.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		ids = append(ids, part)
	}
	return ids
}

// JoinImages is the stored form of an image id list.
func JoinImages(ids []string) string {
	return strings.Join(ids, ",")
}
