package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/openrecovery/blkmap/api"
)

var errNotFound = errors.New("mapping not found")

func writeResponseOutput(w http.ResponseWriter, v interface{}) error {
	output, err := api.ResponseOutput(v)
	if err != nil {
		return err
	}
	log.Debugln("Response: ", string(output))
	_, err = w.Write(output)
	return err
}

func (s *daemon) getMapping(objs map[string]string) (*mappedFile, error) {
	id := objs["id"]
	m, exists := s.Mappings[id]
	if !exists {
		return nil, fmt.Errorf("%w: %v", errNotFound, id)
	}
	return m, nil
}

func (s *daemon) doMappingList(version string, w http.ResponseWriter, r *http.Request, objs map[string]string) error {
	resp := api.MappingsResponse{
		Mappings: make(map[string]api.MappingResponse),
	}
	for id, m := range s.Mappings {
		mr := api.NewMappingResponse(m.Path, m.mapping)
		mr.UUID = id
		resp.Mappings[id] = mr
	}
	return writeResponseOutput(w, resp)
}

func (s *daemon) doMappingInspect(version string, w http.ResponseWriter, r *http.Request, objs map[string]string) error {
	m, err := s.getMapping(objs)
	if err != nil {
		return err
	}
	resp := api.NewMappingResponse(m.Path, m.mapping)
	resp.UUID = m.UUID
	return writeResponseOutput(w, resp)
}

func (s *daemon) doMappingContent(version string, w http.ResponseWriter, r *http.Request, objs map[string]string) error {
	m, err := s.getMapping(objs)
	if err != nil {
		return err
	}
	http.ServeContent(w, r, filepath.Base(m.Path), time.Time{}, m.mapping.Reader())
	return nil
}
