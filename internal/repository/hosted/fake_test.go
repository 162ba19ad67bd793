package hosted

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type row = map[string]interface{}

// fakePostgREST implements the slice of PostgREST the hosted store uses:
// eq, neq and gte filters, order, limit, upsert on a conflict column and
// return=representation.
type fakePostgREST struct {
	key string

	mu     sync.Mutex
	tables map[string][]row
	// requests counts calls by method.
	requests map[string]int
}

func newFakePostgREST(key string) *fakePostgREST {
	return &fakePostgREST{key: key, tables: map[string][]row{}, requests: map[string]int{}}
}

var reserved = map[string]bool{"select": true, "order": true, "limit": true, "on_conflict": true}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != f.key || r.Header.Get("Authorization") != "Bearer "+f.key {
		writeJSON(w, http.StatusUnauthorized, row{"message": "Invalid API key"})
		return
	}
	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[r.Method]++

	q := r.URL.Query()
	filters := map[string]string{}
	for k := range q {
		if !reserved[k] {
			filters[k] = q.Get(k)
		}
	}
	representation := strings.Contains(r.Header.Get("Prefer"), "return=representation")

	switch r.Method {
	case http.MethodGet:
		rows := f.match(table, filters)
		sortRows(rows, q.Get("order"))
		if raw := q.Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n < len(rows) {
				rows = rows[:n]
			}
		}
		writeJSON(w, http.StatusOK, rows)

	case http.MethodPost:
		var body row
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, row{"code": "PGRST102", "message": err.Error()})
			return
		}
		conflictCol := q.Get("on_conflict")
		if conflictCol == "" {
			conflictCol = "id"
		}
		for _, existing := range f.tables[table] {
			if existing[conflictCol] == body[conflictCol] {
				if !strings.Contains(r.Header.Get("Prefer"), "resolution=merge-duplicates") {
					writeJSON(w, http.StatusConflict, row{"code": "23505", "message": "duplicate key value violates unique constraint"})
					return
				}
				for k, v := range body {
					existing[k] = v
				}
				f.reply(w, http.StatusCreated, representation, []row{existing})
				return
			}
		}
		f.tables[table] = append(f.tables[table], body)
		f.reply(w, http.StatusCreated, representation, []row{body})

	case http.MethodPatch:
		var body row
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, row{"code": "PGRST102", "message": err.Error()})
			return
		}
		rows := f.match(table, filters)
		for _, existing := range rows {
			for k, v := range body {
				existing[k] = v
			}
		}
		f.reply(w, http.StatusOK, representation, rows)

	case http.MethodDelete:
		if len(filters) == 0 {
			writeJSON(w, http.StatusBadRequest, row{"code": "21000", "message": "DELETE requires a WHERE clause"})
			return
		}
		kept := f.tables[table][:0]
		for _, existing := range f.tables[table] {
			if !matches(existing, filters) {
				kept = append(kept, existing)
			}
		}
		f.tables[table] = kept
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakePostgREST) reply(w http.ResponseWriter, status int, representation bool, rows []row) {
	if !representation {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if rows == nil {
		rows = []row{}
	}
	writeJSON(w, status, rows)
}

func (f *fakePostgREST) match(table string, filters map[string]string) []row {
	out := []row{}
	for _, r := range f.tables[table] {
		if matches(r, filters) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r row, filters map[string]string) bool {
	for col, expr := range filters {
		op, val, _ := strings.Cut(expr, ".")
		switch op {
		case "eq":
			if !equal(r[col], val) {
				return false
			}
		case "neq":
			if equal(r[col], val) {
				return false
			}
		case "gte":
			if compare(r[col], val) < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(v interface{}, s string) bool {
	switch t := v.(type) {
	case nil:
		return s == "null"
	case string:
		return t == s
	case float64:
		f, err := strconv.ParseFloat(s, 64)
		return err == nil && f == t
	case bool:
		return strconv.FormatBool(t) == s
	}
	return false
}

func compare(v interface{}, s string) int {
	switch t := v.(type) {
	case float64:
		f, _ := strconv.ParseFloat(s, 64)
		return compareFloat(t, f)
	case string:
		return compareString(t, s)
	}
	return -1
}

func compareValues(a, b interface{}) int {
	switch t := a.(type) {
	case float64:
		u, _ := b.(float64)
		return compareFloat(t, u)
	case string:
		u, _ := b.(string)
		return compareString(t, u)
	case bool:
		u, _ := b.(bool)
		if t == u {
			return 0
		}
		if !t {
			return -1
		}
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareString orders timestamps chronologically and everything else
// byte-wise.
func compareString(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}

func sortRows(rows []row, order string) {
	if order == "" {
		return
	}
	keys := strings.Split(order, ",")
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			col, dir, _ := strings.Cut(key, ".")
			c := compareValues(rows[i][col], rows[j][col])
			if c == 0 {
				continue
			}
			if dir == "desc" {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
