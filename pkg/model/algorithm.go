package model

import "strings"

// Algorithm names a scheduling algorithm exercised by the engine.
type Algorithm string

const (
	AlgorithmFCFS Algorithm = "FCFS"
	AlgorithmFIFO Algorithm = "FIFO"
	AlgorithmSPN  Algorithm = "SPN"
	AlgorithmSJF  Algorithm = "SJF"
	AlgorithmHRRN Algorithm = "HRRN"
	AlgorithmRR   Algorithm = "RR"
	AlgorithmSRTF Algorithm = "SRTF"
	AlgorithmMLQ  Algorithm = "MLQ"
	AlgorithmMLFQ Algorithm = "MLFQ"
)

// Algorithms lists every algorithm the engine accepts, in menu order.
func Algorithms() []Algorithm {
	return []Algorithm{
		AlgorithmFCFS, AlgorithmSPN, AlgorithmSJF, AlgorithmHRRN, AlgorithmRR,
		AlgorithmMLQ, AlgorithmMLFQ, AlgorithmFIFO, AlgorithmSRTF,
	}
}

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(s string) (Algorithm, bool) {
	name := Algorithm(strings.ToUpper(strings.TrimSpace(s)))
	for _, a := range Algorithms() {
		if a == name {
			return a, true
		}
	}
	return "", false
}

func (a Algorithm) String() string {
	return string(a)
}

// IsMultiLevel returns true for algorithms that spread processes over several lanes.
func (a Algorithm) IsMultiLevel() bool {
	return a == AlgorithmMLQ || a == AlgorithmMLFQ
}

// IsPreemptive returns true for algorithms that require a time quantum.
func (a Algorithm) IsPreemptive() bool {
	switch a {
	case AlgorithmSJF, AlgorithmRR, AlgorithmSRTF, AlgorithmMLQ, AlgorithmMLFQ:
		return true
	}
	return false
}

// UpperLaneDisciplines are the disciplines accepted for lanes 1-3 of a multi-level run.
var UpperLaneDisciplines = []Algorithm{AlgorithmRR, AlgorithmSJF, AlgorithmSRTF}

// LowestLaneDisciplines are the disciplines accepted for lane 4 of a multi-level run.
var LowestLaneDisciplines = []Algorithm{AlgorithmFCFS, AlgorithmSPN, AlgorithmHRRN}
