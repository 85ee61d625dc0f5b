package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"clawoffice.ai/internal/feed"
	"clawoffice.ai/internal/persistence/indexdb"
	persistlog "clawoffice.ai/internal/persistence/log"
	"clawoffice.ai/internal/sim/office"
)

type metricsSources struct {
	office    *office.Office
	index     *indexdb.SQLiteIndex
	mirror    *storageRuntime
	publisher *feed.Publisher
	eventLog  *persistlog.EventLogger
}

// metricsHandler writes the minimal Prometheus exposition format.
func metricsHandler(src metricsSources) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		gauge(rw, "clawoffice_tick", "Current office tick.", src.office.CurrentTick())

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if st, err := src.office.QueueStatus(ctx); err == nil {
			processing := 0
			if st.IsProcessing {
				processing = 1
			}
			gauge(rw, "clawoffice_dispatch_queue_length", "Interactions waiting behind the current movement.", st.QueueLength)
			gauge(rw, "clawoffice_dispatch_processing", "1 while a movement is in flight.", processing)
		}
		if pv, err := src.office.Presence(ctx); err == nil {
			fmt.Fprintf(rw, "# HELP clawoffice_presence_agents Tracked agents by presence state.\n")
			fmt.Fprintf(rw, "# TYPE clawoffice_presence_agents gauge\n")
			fmt.Fprintf(rw, "clawoffice_presence_agents{state=%q} %d\n", "present", pv.Status.Present)
			fmt.Fprintf(rw, "clawoffice_presence_agents{state=%q} %d\n", "absent", pv.Status.Absent)
		}

		if src.eventLog != nil {
			counter(rw, "clawoffice_eventlog_write_errors_total", "Event log records that failed to write.", src.eventLog.Errors())
		}
		if src.index != nil {
			s := src.index.Stats()
			gauge(rw, "clawoffice_index_queue_depth", "Index write queue depth.", s.QueueDepth)
			gauge(rw, "clawoffice_index_queue_capacity", "Index write queue capacity.", s.QueueCapacity)
			fmt.Fprintf(rw, "# HELP clawoffice_index_dropped_total Records dropped because the index queue was full.\n")
			fmt.Fprintf(rw, "# TYPE clawoffice_index_dropped_total counter\n")
			fmt.Fprintf(rw, "clawoffice_index_dropped_total{stream=%q} %d\n", "movement", s.DropMovementTotal)
			fmt.Fprintf(rw, "clawoffice_index_dropped_total{stream=%q} %d\n", "presence", s.DropPresenceTotal)
		}
		if src.publisher != nil {
			s := src.publisher.Stats()
			counter(rw, "clawoffice_feed_sent_total", "Records published to kafka.", s.Sent)
			counter(rw, "clawoffice_feed_dropped_total", "Records dropped because the publish queue was full.", s.Dropped)
			counter(rw, "clawoffice_feed_failed_total", "Records whose kafka write failed.", s.Failed)
		}
		writeMirrorMetrics(rw, src.mirror)
	}
}

func writeMirrorMetrics(rw io.Writer, rt *storageRuntime) {
	if rt == nil || !rt.enabled || rt.mirror == nil {
		return
	}
	s := rt.mirror.Stats()
	gauge(rw, "clawoffice_mirror_queue_depth", "Current log mirror queue depth.", s.QueueDepth)
	gauge(rw, "clawoffice_mirror_queue_capacity", "Log mirror queue capacity.", s.QueueCapacity)
	counter(rw, "clawoffice_mirror_enqueued_total", "Total mirror enqueue attempts.", s.EnqueuedTotal)
	counter(rw, "clawoffice_mirror_queue_saturated_total", "Total enqueue attempts when queue was saturated.", s.QueueSaturatedTotal)
	counter(rw, "clawoffice_mirror_dropped_total", "Total files dropped because queue remained saturated.", s.DroppedTotal)
	counter(rw, "clawoffice_mirror_upload_success_total", "Total successful mirror uploads.", s.UploadSuccessTotal)
	counter(rw, "clawoffice_mirror_upload_fail_total", "Total failed mirror uploads after retry.", s.UploadFailTotal)
	gauge(rw, "clawoffice_mirror_last_success_unix", "Unix timestamp of last successful mirror upload.", s.LastSuccessUnix)
	gauge(rw, "clawoffice_mirror_last_error_unix", "Unix timestamp of last failed mirror upload.", s.LastErrorUnix)
}

func gauge[T int | int64 | uint64](w io.Writer, name, help string, v T) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, v)
}

func counter(w io.Writer, name, help string, v uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
}
