/*
Package cli implements the simsched command-line client. The cluster
command serves a host directory and simulated worker hosts; the run
command builds a scheduler from the selected config and runs a synthetic
batch against the directory, falling back to an in-process engine when
no host is reachable.
*/
package cli
