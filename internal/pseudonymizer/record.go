package pseudonymizer

// Record is a Pseudonym Record: the side-channel emission produced the
// first time a given cleartext is pseudonymized within the cache window.
type Record struct {
	Pseudonym string `json:"pseudonym"`
	Origin    string `json:"origin"`
	Timestamp string `json:"@timestamp,omitempty"`
}
