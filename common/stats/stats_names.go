package stats

/*
This file defines all the metrics being collected. As new metrics are added please follow this pattern.
*/

const (
	/****************************** Registry metrics ******************************/
	/*
		number of hosts in the catalog after the last refresh
	*/
	RegistryKnownHostsGauge = "knownHostsGauge"

	/*
		number of hosts currently blacklisted
	*/
	RegistryBlacklistedHostsGauge = "blacklistedHostsGauge"

	/*
		sum of the last reported free slots over the catalog
	*/
	RegistryFreeSlotsGauge = "freeSlotsGauge"

	/*
		number of hosts purged after failing a status probe
	*/
	RegistryPurgedHostsCounter = "purgedHostsCounter"

	/*
		number of times the host directory could not be reached
	*/
	RegistryUnreachableCounter = "unreachableCounter"

	/*
		time to fetch the host listing from the directory
	*/
	RegistryRefreshLatency_ms = "refreshLatency_ms"

	/*
		time to probe a single host for its status
	*/
	RegistryProbeLatency_ms = "probeLatency_ms"

	/****************************** Scheduler metrics ******************************/
	/*
		number of batches submitted to RunBatch
	*/
	SchedBatchesCounter = "batchesCounter"

	/*
		number of batches executed on the local engine
	*/
	SchedLocalFallbackCounter = "localFallbackCounter"

	/*
		number of scheduling waves started, including the first one of each batch
	*/
	SchedWavesCounter = "wavesCounter"

	/*
		number of times skew detection tore down a wave
	*/
	SchedSkewDetectedCounter = "skewDetectedCounter"

	/*
		number of worker sessions opened
	*/
	SchedSessionsOpenedCounter = "sessionsOpenedCounter"

	/*
		number of sessions currently connected
	*/
	SchedActiveSessionsGauge = "activeSessionsGauge"

	/*
		jobs that reached the Completed state
	*/
	SchedJobsCompletedCounter = "jobsCompletedCounter"

	/*
		jobs that reached the Failed state
	*/
	SchedJobsFailedCounter = "jobsFailedCounter"

	/*
		jobs that reached the Aborted state
	*/
	SchedJobsAbortedCounter = "jobsAbortedCounter"

	/*
		speedup predicted by the performance model for the current wave
	*/
	SchedPredictedSpeedupGauge = "predictedSpeedupGauge"

	/*
		time for one monitor tick (all polls of the wave)
	*/
	SchedTickLatency_ms = "tickLatency_ms"

	/*
		wall time of a whole batch
	*/
	SchedBatchLatency_ms = "batchLatency_ms"
)
