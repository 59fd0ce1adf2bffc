package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/oshokin/secpi-console/internal/alarmdata"
	console "github.com/oshokin/secpi-console/internal/api/grpc/console"
	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/logger"
	"github.com/oshokin/secpi-console/internal/repository/records"
)

// Envelope statuses.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// Reply messages shared by several endpoints.
const (
	msgIDNotFound = "ID not found!"
	msgInvalidID  = "Invalid ID!"
	msgInvalidIDs = "Invalid IDs!"
)

// handlerFunc serves one endpoint.
type handlerFunc func(ctx context.Context, payload map[string]any) console.Reply

// service is the in-memory remote API. All records are JSON-shaped maps.
type service struct {
	// repo persists every change; nil keeps the store in memory only.
	repo records.Repository
	// filters caches compiled list filters.
	filters *filterCache
	// now stamps alarm and log times.
	now func() time.Time
	// alarms serves captured alarm files; nil when no folder is configured.
	alarms *alarmStore

	// mu protects the record store.
	mu          sync.RWMutex
	collections map[entity.Class][]entity.Entity
	nextIDs     map[entity.Class]int64
	links       map[entity.Relation]map[entity.Record]struct{}
}

// Option configures the service.
type Option func(*service)

// WithAlarmDataDir serves the alarm folders found below dir.
func WithAlarmDataDir(dir string) Option {
	return func(s *service) {
		if dir != "" {
			s.alarms = &alarmStore{root: dir}
		}
	}
}

// newService creates a service backed by the provided repository.
func newService(ctx context.Context, repository records.Repository, opts ...Option) (*service, error) {
	s := &service{
		repo:        repository,
		filters:     newFilterCache(),
		now:         time.Now,
		collections: make(map[entity.Class][]entity.Entity),
		nextIDs:     make(map[entity.Class]int64),
		links:       make(map[entity.Relation]map[entity.Record]struct{}),
	}

	for _, rel := range entity.Relations() {
		s.links[rel] = make(map[entity.Record]struct{})
	}

	for _, opt := range opts {
		opt(s)
	}

	if repository == nil {
		return s, nil
	}

	snapshot, err := repository.Load(ctx)
	switch {
	case err == nil:
		s.restore(snapshot)
	case errors.Is(err, records.ErrNotFound):
		// Start empty.
	default:
		return nil, fmt.Errorf("load records: %w", err)
	}

	return s, nil
}

// Dispatch implements console.Service.
func (s *service) Dispatch(ctx context.Context, path string, payload map[string]any) console.Reply {
	handler, ok := s.route(path)
	if !ok {
		return failure(fmt.Sprintf("Unknown endpoint %s!", path))
	}

	if payload == nil {
		payload = map[string]any{}
	}

	reply := handler(ctx, payload)
	logger.DebugKV(ctx, "Endpoint served", "path", path, "status", reply.Status)

	return reply
}

// route resolves a path to its handler.
//
//nolint:cyclop // One case per endpoint family.
func (s *service) route(path string) (handlerFunc, bool) {
	switch path {
	case entity.ActivatePath:
		return s.activate, true
	case entity.DeactivatePath:
		return s.deactivate, true
	case alarmdata.ListPath:
		return s.listAlarmData, true
	case alarmdata.ListFilesPath:
		return s.listAlarmFiles, true
	case alarmdata.ExtractPath:
		return s.extractAlarmFile, true
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		return nil, false
	}

	base, op := parts[0], entity.Operation(parts[1])

	for _, rel := range entity.Relations() {
		if rel.String() != base {
			continue
		}

		switch op {
		case entity.OpList:
			return func(ctx context.Context, _ map[string]any) console.Reply { return s.listLinks(ctx, rel) }, true
		case entity.OpAdd:
			return func(ctx context.Context, p map[string]any) console.Reply { return s.link(ctx, rel, p) }, true
		case entity.OpDelete:
			return func(ctx context.Context, p map[string]any) console.Reply { return s.unlink(ctx, rel, p) }, true
		default:
			return nil, false
		}
	}

	class, err := entity.ParseClass(base)
	if err != nil || class.Collection() != base {
		return nil, false
	}

	switch op {
	case entity.OpFieldList:
		return func(context.Context, map[string]any) console.Reply { return s.fieldList(class) }, true
	case entity.OpList:
		return func(_ context.Context, p map[string]any) console.Reply { return s.list(class, p) }, true
	case entity.OpAdd:
		return func(ctx context.Context, p map[string]any) console.Reply { return s.add(ctx, class, p) }, true
	case entity.OpUpdate:
		return func(ctx context.Context, p map[string]any) console.Reply { return s.update(ctx, class, p) }, true
	case entity.OpDelete:
		return func(ctx context.Context, p map[string]any) console.Reply { return s.remove(ctx, class, p) }, true
	case entity.OpAck:
		if acknowledgeable(class) {
			return func(ctx context.Context, p map[string]any) console.Reply { return s.ack(ctx, class, p) }, true
		}
	case entity.OpAckAll:
		if acknowledgeable(class) {
			return func(ctx context.Context, _ map[string]any) console.Reply { return s.ackAll(ctx, class) }, true
		}
	}

	return nil, false
}

func (s *service) fieldList(class entity.Class) console.Reply {
	data, err := entity.EncodeFieldList(schemaOf(class))
	if err != nil {
		return failure(fmt.Sprintf("Error while encoding fields: %v", err))
	}

	return success(json.RawMessage(data), "")
}

func (s *service) list(class entity.Class, payload map[string]any) console.Reply {
	filter, _ := payload["filter"].(string)
	sort, _ := payload["sort"].(string)

	s.mu.RLock()
	items := entity.CloneAll(s.collections[class])
	s.mu.RUnlock()

	items, err := s.filters.apply(filter, items)
	if err != nil {
		return failure(fmt.Sprintf("Invalid filter: %v", err))
	}

	sortRecords(items, sort)

	if items == nil {
		items = []entity.Entity{}
	}

	return success(items, "")
}

func (s *service) add(ctx context.Context, class entity.Class, payload map[string]any) console.Reply {
	item := entity.Entity(payload).WithoutID()

	for _, f := range schemaOf(class) {
		if _, ok := item[f.Key]; ok {
			continue
		}

		if v, ok := f.Default(); ok {
			item[f.Key] = v
		}
	}

	if key := timeField(class); key != "" {
		if _, ok := item[key]; !ok {
			item[key] = s.now().UTC().Format(time.RFC3339)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64

	err := s.commitLocked(ctx, func() {
		s.nextIDs[class]++
		id = s.nextIDs[class]
		item[entity.IDField] = id
		s.collections[class] = append(s.collections[class], item)
	})
	if err != nil {
		return failure(fmt.Sprintf("Error while adding %s: %v", class.Name(), err))
	}

	return success(nil, fmt.Sprintf("Added %s with id %d!", class.Name(), id))
}

func (s *service) update(ctx context.Context, class entity.Class, payload map[string]any) console.Reply {
	id, ok := entity.Entity(payload).ID()
	if !ok {
		return failure(msgInvalidID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(class, id)
	if index < 0 {
		return failure(msgIDNotFound)
	}

	err := s.commitLocked(ctx, func() {
		item := s.collections[class][index]
		for k, v := range entity.Entity(payload).WithoutID() {
			item[k] = v
		}
	})
	if err != nil {
		return failure(fmt.Sprintf("Error while updating %s: %v", class.Name(), err))
	}

	return success(nil, fmt.Sprintf("Updated %s with id %d!", class.Name(), id))
}

func (s *service) remove(ctx context.Context, class entity.Class, payload map[string]any) console.Reply {
	id, ok := entity.Entity(payload).ID()
	if !ok {
		return failure(msgInvalidID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(class, id)
	if index < 0 {
		return failure(msgIDNotFound)
	}

	err := s.commitLocked(ctx, func() {
		s.collections[class] = slices.Delete(s.collections[class], index, index+1)

		for rel, set := range s.links {
			for rec := range set {
				if (rel.Left == class && rec.LeftID == id) || (rel.Right == class && rec.RightID == id) {
					delete(set, rec)
				}
			}
		}
	})
	if err != nil {
		return failure(fmt.Sprintf("Error while deleting %s: %v", class.Name(), err))
	}

	return success(nil, fmt.Sprintf("Deleted %s with id %d!", class.Name(), id))
}

func (s *service) ack(ctx context.Context, class entity.Class, payload map[string]any) console.Reply {
	id, ok := entity.Entity(payload).ID()
	if !ok {
		return failure(msgIDNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(class, id)
	if index < 0 {
		return failure(msgIDNotFound)
	}

	err := s.commitLocked(ctx, func() {
		s.collections[class][index]["ack"] = 1
	})
	if err != nil {
		return failure(fmt.Sprintf("Error while acknowledging %s: %v", class.Name(), err))
	}

	return success(nil, fmt.Sprintf("Acknowledged %s with id %d", class.Name(), id))
}

func (s *service) ackAll(ctx context.Context, class entity.Class) console.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.commitLocked(ctx, func() {
		for _, item := range s.collections[class] {
			item["ack"] = 1
		}
	})
	if err != nil {
		return failure(fmt.Sprintf("Error while acknowledging %s: %v", class.Collection(), err))
	}

	return success(nil, fmt.Sprintf("Acknowledged all %s!", class.Collection()))
}

// activate arms one setup and disarms every other.
func (s *service) activate(ctx context.Context, payload map[string]any) console.Reply {
	return s.setActive(ctx, payload, true)
}

func (s *service) deactivate(ctx context.Context, payload map[string]any) console.Reply {
	return s.setActive(ctx, payload, false)
}

func (s *service) setActive(ctx context.Context, payload map[string]any, active bool) console.Reply {
	id, ok := entity.Entity(payload).ID()
	if !ok || id <= 0 {
		return failure(msgInvalidID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(entity.Setup, id)
	if index < 0 {
		return failure(msgInvalidID)
	}

	name, _ := s.collections[entity.Setup][index]["name"].(string)

	err := s.commitLocked(ctx, func() {
		setups := s.collections[entity.Setup]
		if active {
			for _, item := range setups {
				item["active_state"] = 0
			}
		}

		setups[index]["active_state"] = boolToInt(active)
	})
	if err != nil {
		return failure(fmt.Sprintf("Error while switching setup: %v", err))
	}

	logger.InfoKV(ctx, "Setup switched", "id", id, "active", active)

	if active {
		return success(nil, fmt.Sprintf("Activated setup %s!", name))
	}

	return success(nil, fmt.Sprintf("Deactivated setup %s!", name))
}

// listLinks returns every left record with its associated rights nested
// under the right collection's name.
func (s *service) listLinks(_ context.Context, rel entity.Relation) console.Reply {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := make([]map[string]any, 0, len(s.collections[rel.Left]))

	for _, left := range s.collections[rel.Left] {
		leftID, _ := left.ID()
		rights := []map[string]any{}

		for _, right := range s.collections[rel.Right] {
			rightID, _ := right.ID()
			if _, ok := s.links[rel][entity.Record{LeftID: leftID, RightID: rightID}]; !ok {
				continue
			}

			rights = append(rights, map[string]any{
				entity.IDField: rightID,
				"name":         right["name"],
				"description":  right["description"],
			})
		}

		data = append(data, map[string]any{
			entity.IDField:         leftID,
			"name":                 left["name"],
			rel.Right.Collection(): rights,
		})
	}

	return success(data, "")
}

func (s *service) link(ctx context.Context, rel entity.Relation, payload map[string]any) console.Reply {
	return s.changeLink(ctx, rel, payload, true)
}

func (s *service) unlink(ctx context.Context, rel entity.Relation, payload map[string]any) console.Reply {
	return s.changeLink(ctx, rel, payload, false)
}

func (s *service) changeLink(ctx context.Context, rel entity.Relation, payload map[string]any, add bool) console.Reply {
	leftID, okLeft := entity.Entity{entity.IDField: payload[rel.LeftKey()]}.ID()
	rightID, okRight := entity.Entity{entity.IDField: payload[rel.RightKey()]}.ID()

	if !okLeft || !okRight || leftID <= 0 || rightID <= 0 {
		return failure(msgInvalidIDs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(rel.Left, leftID) < 0 || s.indexLocked(rel.Right, rightID) < 0 {
		return failure(msgInvalidIDs)
	}

	rec := entity.Record{LeftID: leftID, RightID: rightID}

	message := fmt.Sprintf("Removed %s %d from %s %d!", rel.Right.Name(), rightID, rel.Left.Name(), leftID)
	if add {
		message = fmt.Sprintf("Added %s %d to %s %d!", rel.Right.Name(), rightID, rel.Left.Name(), leftID)
	}

	err := s.commitLocked(ctx, func() {
		if add {
			s.links[rel][rec] = struct{}{}
		} else {
			delete(s.links[rel], rec)
		}
	})
	if err != nil {
		return failure(fmt.Sprintf("Error while changing %s: %v", rel, err))
	}

	return success(nil, message)
}

// indexLocked finds the position of a record by id; s.mu must be held.
func (s *service) indexLocked(class entity.Class, id int64) int {
	return slices.IndexFunc(s.collections[class], func(e entity.Entity) bool {
		got, ok := e.ID()

		return ok && got == id
	})
}

// commitLocked applies mutate and persists the result; s.mu must be held.
// When saving fails the store is put back to its state before mutate.
func (s *service) commitLocked(ctx context.Context, mutate func()) error {
	if s.repo == nil {
		mutate()

		return nil
	}

	before := s.snapshotLocked()

	mutate()

	if err := s.persistLocked(ctx); err != nil {
		s.resetLocked()
		s.restore(before)

		return err
	}

	return nil
}

// resetLocked empties the store; s.mu must be held.
func (s *service) resetLocked() {
	s.collections = make(map[entity.Class][]entity.Entity)
	s.nextIDs = make(map[entity.Class]int64)

	for _, rel := range entity.Relations() {
		s.links[rel] = make(map[entity.Record]struct{})
	}
}

// persistLocked saves the store; s.mu must be held.
func (s *service) persistLocked(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	if err := s.repo.Save(ctx, s.snapshotLocked()); err != nil {
		logger.Errorf(ctx, "Failed to persist records: %v", err)

		return goerr.Wrap(err, "persist records", goerr.V("collections", len(s.collections)))
	}

	return nil
}

// snapshotLocked captures the store; s.mu must be held.
func (s *service) snapshotLocked() *records.Snapshot {
	snapshot := &records.Snapshot{
		Collections: make(map[string][]entity.Entity, len(s.collections)),
		NextIDs:     make(map[string]int64, len(s.nextIDs)),
		Links:       make(map[string][]entity.Record, len(s.links)),
	}

	for class, items := range s.collections {
		snapshot.Collections[class.Collection()] = entity.CloneAll(items)
	}

	for class, id := range s.nextIDs {
		snapshot.NextIDs[class.Collection()] = id
	}

	for rel, set := range s.links {
		recs := make([]entity.Record, 0, len(set))
		for rec := range set {
			recs = append(recs, rec)
		}

		slices.SortFunc(recs, func(a, b entity.Record) int {
			if a.LeftID != b.LeftID {
				return int(a.LeftID - b.LeftID)
			}

			return int(a.RightID - b.RightID)
		})

		snapshot.Links[rel.String()] = recs
	}

	return snapshot
}

// restore loads a snapshot, skipping names that are no longer registered.
func (s *service) restore(snapshot *records.Snapshot) {
	for name, items := range snapshot.Collections {
		if class, err := entity.ParseClass(name); err == nil {
			s.collections[class] = items
		}
	}

	for name, id := range snapshot.NextIDs {
		if class, err := entity.ParseClass(name); err == nil {
			s.nextIDs[class] = id
		}
	}

	for _, rel := range entity.Relations() {
		for _, rec := range snapshot.Links[rel.String()] {
			s.links[rel][rec] = struct{}{}
		}
	}
}

func success(data any, message string) console.Reply {
	return console.Reply{Status: statusSuccess, Data: data, Message: message}
}

func failure(message string) console.Reply {
	return console.Reply{Status: statusError, Message: message}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
