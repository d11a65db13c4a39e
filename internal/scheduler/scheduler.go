// Package scheduler provides a one-shot, time-ordered job queue for short
// delayed callbacks. Recurring work belongs to timer events on the event
// bus, not here.
package scheduler

import (
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Job is a pending one-shot callback.
type Job struct {
	ID    string
	RunAt time.Time
	Fn    func()
}

// Scheduler keeps jobs sorted by run time. It is driven from the runtime's
// single-threaded main loop, so no locking is needed.
type Scheduler struct {
	jobs []*Job
}

func New() *Scheduler {
	return &Scheduler{}
}

// Schedule inserts a job to run at or after runAt and returns its id.
func (s *Scheduler) Schedule(runAt time.Time, fn func()) string {
	job := &Job{ID: uuid.NewString(), RunAt: runAt, Fn: fn}
	// Binary insert; equal times keep insertion order.
	i := sort.Search(len(s.jobs), func(i int) bool {
		return s.jobs[i].RunAt.After(runAt)
	})
	s.jobs = append(s.jobs, nil)
	copy(s.jobs[i+1:], s.jobs[i:])
	s.jobs[i] = job
	return job.ID
}

// ScheduleIn is Schedule with a relative delay.
func (s *Scheduler) ScheduleIn(delay time.Duration, fn func()) string {
	return s.Schedule(time.Now().Add(delay), fn)
}

// Cancel removes a pending job. It reports whether the job was still queued.
func (s *Scheduler) Cancel(id string) bool {
	for i, job := range s.jobs {
		if job.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return true
		}
	}
	return false
}

// Check runs every job due at now, in time order. A panicking callback is
// logged and does not stop the remaining due jobs.
func (s *Scheduler) Check(now time.Time) {
	for len(s.jobs) > 0 && !s.jobs[0].RunAt.After(now) {
		job := s.jobs[0]
		s.jobs = s.jobs[1:]
		runJob(job)
	}
}

// Len returns the number of pending jobs.
func (s *Scheduler) Len() int {
	return len(s.jobs)
}

func runJob(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: job %s panicked: %v", job.ID, r)
		}
	}()
	job.Fn()
}
