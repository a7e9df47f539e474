package api

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/openrecovery/blkmap/sysmap"
	"github.com/sirupsen/logrus"
)

const API_VERSION = "1"

type ErrorResponse struct {
	Error string
}

type RangeResponse struct {
	Address uint64
	Length  int64
}

type MappingResponse struct {
	UUID       string `json:",omitempty"`
	Path       string
	Length     int64
	RangeCount int
	Ranges     []RangeResponse
}

type MappingsResponse struct {
	Mappings map[string]MappingResponse
}

func ResponseError(format string, a ...interface{}) {
	response := ErrorResponse{Error: fmt.Sprintf(format, a...)}
	j, err := json.MarshalIndent(&response, "", "\t")
	if err != nil {
		panic(fmt.Sprintf("Failed to generate response for error: %v", err))
	}
	fmt.Println(string(j))
}

func ResponseLogAndError(v interface{}) {
	if e, ok := v.(*logrus.Entry); ok {
		e.Error(e.Message)
		oldFormatter := e.Logger.Formatter
		logrus.SetFormatter(&logrus.JSONFormatter{})
		s, err := e.String()
		logrus.SetFormatter(oldFormatter)
		if err != nil {
			ResponseError(err.Error())
			return
		}
		// Cosmetic since " would be escaped
		ResponseError(strings.Replace(s, "\"", "'", -1))
	} else if e, ok := v.(error); ok {
		logrus.Errorf(fmt.Sprint(e))
		ResponseError(fmt.Sprint(e))
	} else {
		logrus.Errorf("%s: %s", v, debug.Stack())
		ResponseError("Caught FATAL error: %s", v)
	}
}

func ResponseOutput(v interface{}) ([]byte, error) {
	j, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return nil, err
	}
	return j, nil
}

// NewMappingResponse flattens a mapped file into its API representation.
func NewMappingResponse(path string, m *sysmap.Mapping) MappingResponse {
	ranges := make([]RangeResponse, 0, len(m.Ranges()))
	for _, r := range m.Ranges() {
		ranges = append(ranges, RangeResponse{
			Address: uint64(r.Addr()),
			Length:  r.Len(),
		})
	}
	return MappingResponse{
		Path:       path,
		Length:     m.Length(),
		RangeCount: len(ranges),
		Ranges:     ranges,
	}
}
