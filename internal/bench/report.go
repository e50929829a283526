package bench

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Score is an F-measure. It is written the way Python's float repr writes
// it, so whole numbers keep their decimal point.
type Score float64

// String formats s as 0.0, 0.7123 or 1e-05.
func (s Score) String() string {
	f := float64(s)
	if a := math.Abs(f); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	out := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("unsupported score %v", f)
	}
	return []byte(s.String()), nil
}

// Record is the result of one experiment.
type Record struct {
	TrainModel  string `json:"train_model"`
	TestDataset string `json:"test_dataset"`
	ODS         Score  `json:"ODS"`
	OIS         Score  `json:"OIS"`
}

// Report maps "model/dataset" keys to records and remembers insertion order,
// which is the order the JSON object is written in.
type Report struct {
	keys    []string
	records map[string]Record
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{records: make(map[string]Record)}
}

// Add inserts a record. An existing key keeps its original position.
func (r *Report) Add(key string, rec Record) {
	if _, ok := r.records[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.records[key] = rec
}

// Get returns the record stored under key.
func (r *Report) Get(key string) (Record, bool) {
	rec, ok := r.records[key]
	return rec, ok
}

// Keys returns the keys in insertion order.
func (r *Report) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of records.
func (r *Report) Len() int {
	return len(r.keys)
}

// MarshalJSON writes the records as one object in insertion order.
func (r *Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.records[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of records, keeping the file's key order.
func (r *Report) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return fmt.Errorf("report must be a JSON object")
	}
	*r = *NewReport()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("record %s: %w", key, err)
		}
		r.Add(key, rec)
	}
	_, err := dec.Token()
	return err
}

// Indented renders the report with 4-space indentation.
func (r *Report) Indented() ([]byte, error) {
	return json.MarshalIndent(r, "", "    ")
}

// Save writes the report to path.
func (r *Report) Save(path string) error {
	data, err := r.Indented()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadReport reads a report written by Save.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := NewReport()
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
