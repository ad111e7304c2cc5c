package notifications

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	bodyPrefix   = "New job application for job "
	fromSep      = " from "
	candidateSep = " | "
)

var ErrMalformedMessage = errors.New("malformed notification message")

// Message announces a new application. On the queue it travels as a plain
// text body, see Body and Parse.
type Message struct {
	JobID          int64
	CandidateName  string
	CandidateEmail string
}

// Body renders the queue payload:
//
//	New job application for job {jobId} from {candidateName} | {candidateEmail}
func (m Message) Body() string {
	return fmt.Sprintf("%s%d%s%s%s%s", bodyPrefix, m.JobID, fromSep, m.CandidateName, candidateSep, m.CandidateEmail)
}

// Parse reads a payload produced by Body. The email is taken after the last
// separator so names may contain " | ".
func Parse(body string) (Message, error) {
	rest, ok := strings.CutPrefix(body, bodyPrefix)
	if !ok {
		return Message{}, fmt.Errorf("%w: unexpected prefix", ErrMalformedMessage)
	}

	rawID, rest, ok := strings.Cut(rest, fromSep)
	if !ok {
		return Message{}, fmt.Errorf("%w: missing candidate", ErrMalformedMessage)
	}
	jobID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("%w: job id %q", ErrMalformedMessage, rawID)
	}

	i := strings.LastIndex(rest, candidateSep)
	if i < 0 {
		return Message{}, fmt.Errorf("%w: missing email", ErrMalformedMessage)
	}
	name, email := rest[:i], rest[i+len(candidateSep):]
	if name == "" || email == "" {
		return Message{}, fmt.Errorf("%w: empty candidate field", ErrMalformedMessage)
	}

	return Message{JobID: jobID, CandidateName: name, CandidateEmail: email}, nil
}
