package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
	"github.com/redis/go-redis/v9"
)

var _ app.ClassroomStore = (*ClassroomStore)(nil)

// maxTxRetries bounds optimistic retries when WATCHed keys change under us.
const maxTxRetries = 16

// ClassroomStore keeps classroom documents in Redis.
// Layout:
//
//	classroom:{id}                         JSON document
//	classroom:{id}:updates                 pub/sub channel carrying JSON snapshots
//	classroom:{id}:rounds                  SET of question ids with submissions
//	classroom:{id}:submissions:{question}  LIST of JSON submissions in arrival order
//	owner:{ownerID}:classrooms             SET of classroom ids
//	classrooms:session-end                 ZSET of undismissed classrooms scored by end time (ms)
//
// Document writes run under WATCH/MULTI so concurrent writers retry instead of overwriting.
type ClassroomStore struct {
	client *redis.Client
}

func NewClassroomStore(client *redis.Client) *ClassroomStore {
	return &ClassroomStore{client: client}
}

func docKey(id string) string {
	return "classroom:" + id
}

func updatesChannel(id string) string {
	return "classroom:" + id + ":updates"
}

func roundsKey(id string) string {
	return "classroom:" + id + ":rounds"
}

func submissionsKey(id, questionID string) string {
	return "classroom:" + id + ":submissions:" + questionID
}

func ownerKey(ownerID string) string {
	return "owner:" + ownerID + ":classrooms"
}

const sessionEndKey = "classrooms:session-end"

func (s *ClassroomStore) Create(ctx context.Context, classroom domain.Classroom) error {
	data, err := json.Marshal(classroom)
	if err != nil {
		return fmt.Errorf("marshal classroom: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(classroom.ID), data, 0)
		pipe.SAdd(ctx, ownerKey(classroom.OwnerID), classroom.ID)
		indexSessionEnd(ctx, pipe, classroom)
		return nil
	})
	return err
}

func (s *ClassroomStore) Get(ctx context.Context, id string) (domain.Classroom, error) {
	raw, err := s.client.Get(ctx, docKey(id)).Bytes()
	return decodeClassroom(raw, err)
}

func (s *ClassroomStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Classroom, error) {
	ids, err := s.client.SMembers(ctx, ownerKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list owner classrooms: %w", err)
	}
	docs, err := s.getMany(ctx, s.client, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Classroom, 0, len(docs))
	for _, c := range docs {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *ClassroomStore) Update(ctx context.Context, id string, mutate func(*domain.Classroom) error) (domain.Classroom, error) {
	key := docKey(id)
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		var out domain.Classroom
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			doc, err := decodeClassroom(tx.Get(ctx, key).Bytes())
			if err != nil {
				return err
			}
			if err := mutate(&doc); err != nil {
				return err
			}
			doc.Version++
			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("marshal classroom: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				indexSessionEnd(ctx, pipe, doc)
				pipe.Publish(ctx, updatesChannel(id), data)
				return nil
			})
			if err == nil {
				out = doc
			}
			return err
		}, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.Classroom{}, err
	}
	return domain.Classroom{}, domain.ErrConflict
}

// ClaimRace is a compare-and-set on the race fields: the claim is judged on the WATCHed
// document and the write only commits if nothing changed since.
func (s *ClassroomStore) ClaimRace(ctx context.Context, id string, claim app.RaceClaim) (domain.Classroom, app.ClaimOutcome, error) {
	key := docKey(id)
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		var out domain.Classroom
		var outcome app.ClaimOutcome
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			doc, err := decodeClassroom(tx.Get(ctx, key).Bytes())
			if err != nil {
				return err
			}
			if outcome = app.JudgeClaim(doc.Race, claim); outcome != app.ClaimWon {
				out = doc
				return nil
			}
			doc.Race.Status = domain.RaceFinished
			doc.Race.WinnerID = claim.StudentID
			doc.Race.WinnerName = claim.StudentName
			doc.Version++
			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("marshal classroom: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				pipe.Publish(ctx, updatesChannel(id), data)
				return nil
			})
			if err == nil {
				out = doc
			}
			return err
		}, key)
		if err == nil {
			return out, outcome, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.Classroom{}, "", err
	}
	return domain.Classroom{}, "", domain.ErrConflict
}

func (s *ClassroomStore) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	rounds, err := s.client.SMembers(ctx, roundsKey(id)).Result()
	if err != nil {
		return fmt.Errorf("list rounds: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		keys := []string{docKey(id), roundsKey(id)}
		for _, q := range rounds {
			keys = append(keys, submissionsKey(id, q))
		}
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, ownerKey(doc.OwnerID), id)
		pipe.ZRem(ctx, sessionEndKey, id)
		// An empty payload tells subscribers the document is gone.
		pipe.Publish(ctx, updatesChannel(id), "")
		return nil
	})
	return err
}

func (s *ClassroomStore) AddSubmission(ctx context.Context, submission domain.Submission) error {
	data, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, roundsKey(submission.ClassroomID), submission.QuestionID)
		pipe.RPush(ctx, submissionsKey(submission.ClassroomID, submission.QuestionID), data)
		return nil
	})
	return err
}

func (s *ClassroomStore) ListSubmissions(ctx context.Context, classroomID, questionID string) ([]domain.Submission, error) {
	raws, err := s.client.LRange(ctx, submissionsKey(classroomID, questionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	out := make([]domain.Submission, 0, len(raws))
	for _, raw := range raws {
		var sub domain.Submission
		if err := json.Unmarshal([]byte(raw), &sub); err != nil {
			return nil, fmt.Errorf("unmarshal submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, nil
}

// Subscribe listens on the classroom's update channel. The subscription is confirmed before
// the initial document is read so no write between the two is missed; older snapshots that
// arrive after a newer one are skipped by version.
func (s *ClassroomStore) Subscribe(ctx context.Context, id string) (<-chan domain.Classroom, func(), error) {
	pubsub := s.client.Subscribe(ctx, updatesChannel(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}
	initial, err := s.Get(ctx, id)
	if err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan domain.Classroom, 8)
	out <- initial
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		defer close(out)
		last := initial.Version
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok || msg.Payload == "" {
					return
				}
				var doc domain.Classroom
				if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil || doc.Version <= last {
					continue
				}
				last = doc.Version
				select {
				case out <- doc:
				default:
					select {
					case <-out:
					default:
					}
					out <- doc
				}
			}
		}
	}()

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
			<-finished
		})
	}
	stop := context.AfterFunc(ctx, teardown)
	cancel := func() {
		stop()
		teardown()
	}
	return out, cancel, nil
}

func (s *ClassroomStore) ListExpired(ctx context.Context, now time.Time) ([]domain.Classroom, error) {
	ids, err := s.client.ZRangeByScore(ctx, sessionEndKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("query session end index: %w", err)
	}
	docs, err := s.getMany(ctx, s.client, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Classroom, 0, len(docs))
	for _, c := range docs {
		if !c.IsDismissed && c.SessionEndTime != nil && !c.SessionEndTime.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Dismiss writes every affected document in one MULTI so the batch lands atomically.
func (s *ClassroomStore) Dismiss(ctx context.Context, ids []string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, docKey(id))
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		changed := 0
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			docs, err := s.getMany(ctx, tx, ids)
			if err != nil {
				return err
			}
			type write struct {
				id   string
				data []byte
			}
			writes := make([]write, 0, len(docs))
			for _, doc := range docs {
				if doc.IsDismissed {
					continue
				}
				doc.Dismiss(at)
				doc.Version++
				data, err := json.Marshal(doc)
				if err != nil {
					return fmt.Errorf("marshal classroom: %w", err)
				}
				writes = append(writes, write{id: doc.ID, data: data})
			}
			if len(writes) == 0 {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, w := range writes {
					pipe.Set(ctx, docKey(w.id), w.data, 0)
					pipe.ZRem(ctx, sessionEndKey, w.id)
					pipe.Publish(ctx, updatesChannel(w.id), w.data)
				}
				return nil
			})
			if err == nil {
				changed = len(writes)
			}
			return err
		}, keys...)
		if err == nil {
			return changed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return 0, err
	}
	return 0, domain.ErrConflict
}

// mgetter is satisfied by both *redis.Client and *redis.Tx.
type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// getMany loads documents by id, skipping missing ones.
func (s *ClassroomStore) getMany(ctx context.Context, c mgetter, ids []string) ([]domain.Classroom, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, docKey(id))
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load classrooms: %w", err)
	}
	out := make([]domain.Classroom, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var doc domain.Classroom
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal classroom: %w", err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func decodeClassroom(raw []byte, err error) (domain.Classroom, error) {
	if errors.Is(err, redis.Nil) {
		return domain.Classroom{}, domain.ErrClassroomNotFound
	}
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("load classroom: %w", err)
	}
	var doc domain.Classroom
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Classroom{}, fmt.Errorf("unmarshal classroom: %w", err)
	}
	return doc, nil
}

func indexSessionEnd(ctx context.Context, pipe redis.Pipeliner, c domain.Classroom) {
	if c.IsDismissed || c.SessionEndTime == nil {
		pipe.ZRem(ctx, sessionEndKey, c.ID)
		return
	}
	pipe.ZAdd(ctx, sessionEndKey, redis.Z{
		Score:  float64(c.SessionEndTime.UnixMilli()),
		Member: c.ID,
	})
}
