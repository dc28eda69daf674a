/*
package server provides Scheduler which runs batches of simulation jobs on remote worker hosts.

* Concepts *
Session:
  A connection to one worker host holding a reservation of Pm threads. A session runs at most one job at a time
  and keeps a FIFO queue of the jobs dealt to it.

Wave:
  One attempt at running the remaining jobs with a fixed configuration (Pm threads per job, Pa sessions).
  Setup never reserves more threads than the registry reports free, and deals jobs to sessions round-robin
  in input order. A wave is torn down and replaced when it is rescheduled, never reconfigured in place.

Skew:
  deficit(job) = max fraction of jobs started no earlier than it - fraction(job)
  A job whose deficit exceeds SkewThreshold is a straggler and its host is blacklisted for the batch.

Reschedule policy:
  None                 one wave with Pm = MaxThreads and Pa = MaxParallelism, no skew detection.
  InternalLoadBalance  tear the skewed wave down, pick a new (Pm, Pa) from the performance model and run
                       the unfinished jobs again, up to MaxWaves waves.
  ExternalReschedule   tear the skewed wave down, abort the unfinished jobs and return the suggested
                       configuration with NeedsRescheduling set.

* Logic *
Queue manager states:
  Idle -> Provisioning -> Running -> {Draining, Rescheduling} -> Idle
  Rescheduling -> Provisioning starts the next wave.

Launch failures:
  A job whose load or start fails is Failed, with the worker's messages attached, wherever it was launched.
  In the first launch of a wave the wave also breaks and its host is a reschedule suspect.

Monitor loop:
  Poll every in-flight session concurrently, each poll bounded by PollTimeout.
  Completed jobs are collected and their session starts the next queued job.
  A failed session fails its job and hands its queue to the remaining sessions.
  The wait between ticks grows while nothing changes, up to MaxTickInterval.

Local fallback:
  When remote execution is off, or the registry is unreachable or empty, the batch runs on the local engine,
  on the calling goroutine (LocalBlocking) or on up to LocalWorkers goroutines.
*/
package server
