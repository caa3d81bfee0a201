package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

// Fault makes the scripted legacy platform fail calls for one legacy type.
// Times <= 0 fails every matching call.
type Fault struct {
	Stage      entities.WorkflowStage
	LegacyType string
	Operation  entities.Operation
	Err        error
	Times      int
}

// LegacyPlatform is a scripted stand-in for the legacy system. It assigns
// identifiers on create, honours idempotency tokens and stores objects so
// read-back returns canonical state.
type LegacyPlatform struct {
	mu sync.Mutex

	objects   map[string]map[string]map[string]any
	tokens    map[string]string
	faults    []*Fault
	sequence  int
	pushes    int
	readBacks int
	// Decorate lets tests add server-computed fields to stored objects.
	Decorate func(legacyType string, object map[string]any)
}

func NewLegacyPlatform() *LegacyPlatform {
	return &LegacyPlatform{
		objects: make(map[string]map[string]map[string]any),
		tokens:  make(map[string]string),
	}
}

func (l *LegacyPlatform) InjectFault(fault Fault) {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := fault
	l.faults = append(l.faults, &copied)
}

func (l *LegacyPlatform) ClearFaults() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults = nil
}

func (l *LegacyPlatform) Push(_ context.Context, req ports.PushRequest) (ports.PushResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pushes++
	legacyType := req.Mapping.LegacyType
	if err := l.faultLocked(entities.StagePush, legacyType, req.Operation); err != nil {
		return ports.PushResult{}, err
	}

	body, err := toObject(req.Body)
	if err != nil {
		return ports.PushResult{}, &domainerrors.LegacyAPIError{Op: "push", StatusCode: 400, Body: err.Error()}
	}

	switch req.Operation {
	case entities.OperationCreate:
		if req.IdempotencyToken != "" {
			if legacyID, ok := l.tokens[req.IdempotencyToken]; ok {
				return ports.PushResult{LegacyID: legacyID}, nil
			}
		}
		l.sequence++
		legacyID := fmt.Sprintf("%s-%d", legacyType, l.sequence)
		body["id"] = legacyID
		l.storeLocked(legacyType, legacyID, body)
		if req.IdempotencyToken != "" {
			l.tokens[req.IdempotencyToken] = legacyID
		}
		return ports.PushResult{LegacyID: legacyID}, nil
	case entities.OperationUpdate:
		existing, ok := l.objects[legacyType][req.LegacyID]
		if !ok {
			return ports.PushResult{}, &domainerrors.LegacyAPIError{Op: "push", StatusCode: 404, Body: "no such object"}
		}
		for key, value := range body {
			existing[key] = value
		}
		existing["id"] = req.LegacyID
		l.storeLocked(legacyType, req.LegacyID, existing)
		return ports.PushResult{LegacyID: req.LegacyID}, nil
	case entities.OperationDelete:
		// Deleting an absent object succeeds so replays are harmless.
		delete(l.objects[legacyType], req.LegacyID)
		return ports.PushResult{LegacyID: req.LegacyID}, nil
	default:
		return ports.PushResult{}, &domainerrors.LegacyAPIError{Op: "push", StatusCode: 400, Body: "unsupported operation"}
	}
}

func (l *LegacyPlatform) ReadBack(_ context.Context, mapping entities.EntityMapping, legacyID string) (map[string]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.readBacks++
	if err := l.faultLocked(entities.StageReadBack, mapping.LegacyType, ""); err != nil {
		return nil, err
	}
	object, ok := l.objects[mapping.LegacyType][legacyID]
	if !ok {
		return nil, domainerrors.ErrLegacyObjectNotFound
	}
	copied := make(map[string]any, len(object))
	for key, value := range object {
		copied[key] = value
	}
	return copied, nil
}

// Seed stores an object as if it already existed on the legacy platform.
func (l *LegacyPlatform) Seed(legacyType string, legacyID string, object map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := make(map[string]any, len(object)+1)
	for key, value := range object {
		copied[key] = value
	}
	copied["id"] = legacyID
	if l.objects[legacyType] == nil {
		l.objects[legacyType] = make(map[string]map[string]any)
	}
	l.objects[legacyType][legacyID] = copied
}

func (l *LegacyPlatform) Object(legacyType string, legacyID string) (map[string]any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	object, ok := l.objects[legacyType][legacyID]
	return object, ok
}

func (l *LegacyPlatform) PushCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pushes
}

func (l *LegacyPlatform) ReadBackCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readBacks
}

// ObjectCount counts stored objects of one legacy type.
func (l *LegacyPlatform) ObjectCount(legacyType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.objects[legacyType])
}

func (l *LegacyPlatform) storeLocked(legacyType string, legacyID string, object map[string]any) {
	if l.objects[legacyType] == nil {
		l.objects[legacyType] = make(map[string]map[string]any)
	}
	object["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	if l.Decorate != nil {
		l.Decorate(legacyType, object)
	}
	l.objects[legacyType][legacyID] = object
}

func (l *LegacyPlatform) faultLocked(stage entities.WorkflowStage, legacyType string, op entities.Operation) error {
	for i, fault := range l.faults {
		if fault.Stage != stage || fault.LegacyType != legacyType {
			continue
		}
		if fault.Operation != "" && op != "" && fault.Operation != op {
			continue
		}
		if fault.Times > 0 {
			fault.Times--
			if fault.Times == 0 {
				l.faults = append(l.faults[:i], l.faults[i+1:]...)
			}
		}
		return fault.Err
	}
	return nil
}

func toObject(body any) (map[string]any, error) {
	object := make(map[string]any)
	if body == nil {
		return object, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &object); err != nil {
		return nil, err
	}
	return object, nil
}

var _ ports.LegacyPlatform = (*LegacyPlatform)(nil)

// ManualClock is a settable clock for deterministic backoff tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ ports.Clock = (*ManualClock)(nil)
