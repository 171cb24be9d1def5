package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"binnacle/internal/schema"
	"binnacle/internal/sensors"
)

// sensorsAPI serves the live sensor state and the catalogue behind it.
type sensorsAPI struct {
	cache  *sensors.Cache
	schema *schema.Registry
}

type sensorsResponse struct {
	NowUTC  string                     `json:"now_utc"`
	Sensors []sensors.InstanceSnapshot `json:"sensors"`
}

func (a *sensorsAPI) handleAll(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	list := a.cache.Snapshot(now)
	if list == nil {
		list = []sensors.InstanceSnapshot{}
	}
	writeJSON(w, sensorsResponse{
		NowUTC:  now.Format(time.RFC3339Nano),
		Sensors: list,
	})
}

func (a *sensorsAPI) handleType(w http.ResponseWriter, r *http.Request) {
	st, ok := a.sensorType(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	list := a.cache.SnapshotType(now, st)
	if list == nil {
		list = []sensors.InstanceSnapshot{}
	}
	writeJSON(w, sensorsResponse{
		NowUTC:  now.Format(time.RFC3339Nano),
		Sensors: list,
	})
}

func (a *sensorsAPI) handleInstance(w http.ResponseWriter, r *http.Request) {
	st, ok := a.sensorType(w, r)
	if !ok {
		return
	}
	inst, ok := instanceParam(w, r)
	if !ok {
		return
	}
	snap, ok := a.cache.SnapshotInstance(time.Now().UTC(), st, inst)
	if !ok {
		http.Error(w, "no such sensor instance", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (a *sensorsAPI) handleMetric(w http.ResponseWriter, r *http.Request) {
	st, ok := a.sensorType(w, r)
	if !ok {
		return
	}
	inst, ok := instanceParam(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	mv, ok := a.cache.GetMetric(st, inst, key)
	if !ok {
		http.Error(w, "no such metric", http.StatusNotFound)
		return
	}
	writeJSON(w, mv)
}

// sensorType resolves the {type} URL parameter against the catalogue.
func (a *sensorsAPI) sensorType(w http.ResponseWriter, r *http.Request) (schema.SensorType, bool) {
	st := schema.SensorType(chi.URLParam(r, "type"))
	if _, ok := a.schema.Type(st); !ok {
		http.Error(w, "unknown sensor type", http.StatusNotFound)
		return "", false
	}
	return st, true
}

func instanceParam(w http.ResponseWriter, r *http.Request) (sensors.InstanceID, bool) {
	s := chi.URLParam(r, "instance")
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		http.Error(w, "instance must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return sensors.InstanceID(v), true
}

type schemaFieldView struct {
	Key      string   `json:"key"`
	Mnemonic string   `json:"mnemonic"`
	Label    string   `json:"label,omitempty"`
	Category string   `json:"category"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
}

type schemaTypeView struct {
	Type   string            `json:"type"`
	Label  string            `json:"label,omitempty"`
	Fields []schemaFieldView `json:"fields"`
}

type schemaResponse struct {
	Types []schemaTypeView `json:"types"`
}

func (a *sensorsAPI) handleSchema(w http.ResponseWriter, r *http.Request) {
	types := a.schema.Types()
	resp := schemaResponse{Types: make([]schemaTypeView, 0, len(types))}
	for _, st := range types {
		ts, ok := a.schema.Type(st)
		if !ok {
			continue
		}
		view := schemaTypeView{
			Type:   string(ts.Type),
			Label:  ts.Label,
			Fields: make([]schemaFieldView, 0, len(ts.Fields)),
		}
		for i := range ts.Fields {
			f := &ts.Fields[i]
			view.Fields = append(view.Fields, schemaFieldView{
				Key:      f.Key,
				Mnemonic: f.Mnemonic,
				Label:    f.Label,
				Category: string(f.Category),
				Min:      f.Min,
				Max:      f.Max,
			})
		}
		resp.Types = append(resp.Types, view)
	}
	writeJSON(w, resp)
}
