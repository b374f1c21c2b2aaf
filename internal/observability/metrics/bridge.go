package metrics

// VerificationRequest records a verification attempt's terminal state.
func VerificationRequest(result string) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(result).Inc()
}

// ContractImport records a workspace import.
func ContractImport(status string) {
	if !enabled {
		return
	}
	importTotal.WithLabelValues(status).Inc()
}

// HostConnected records an IDE host attaching.
func HostConnected() {
	if !enabled {
		return
	}
	hostConnections.Inc()
}

// HostDisconnected records an IDE host detaching.
func HostDisconnected() {
	if !enabled {
		return
	}
	hostConnections.Dec()
}

// CompilationReceived records a compilation event pushed by a host.
func CompilationReceived() {
	if !enabled {
		return
	}
	compilationsReceived.Inc()
}
