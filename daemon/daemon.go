package daemon

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/openrecovery/blkmap/api"
	"github.com/openrecovery/blkmap/sysmap"
	"github.com/openrecovery/blkmap/util"

	. "github.com/openrecovery/blkmap/logging"
)

type daemon struct {
	Router   *mux.Router
	Mappings map[string]*mappedFile
}

// mappedFile is one file registered with the daemon, held mapped for its
// whole lifetime and addressed by a generated uuid.
type mappedFile struct {
	UUID    string
	Path    string
	mapping *sysmap.Mapping
}

const (
	LOCKFILE = "lock"
)

var (
	lockFile *os.File
	logFile  *os.File

	log = logrus.WithFields(logrus.Fields{"pkg": "daemon"})
)

func createRouter(s *daemon) *mux.Router {
	router := mux.NewRouter()
	m := map[string]map[string]requestHandler{
		"GET": {
			"/mappings":              s.doMappingList,
			"/mappings/{id}":         s.doMappingInspect,
			"/mappings/{id}/content": s.doMappingContent,
		},
	}
	for method, routes := range m {
		for route, f := range routes {
			log.Debugf("Registering %s, %s", method, route)
			handler := makeHandlerFunc(method, route, api.API_VERSION, f)
			router.Path("/v{version:[0-9.]+}" + route).Methods(method).HandlerFunc(handler)
			router.Path(route).Methods(method).HandlerFunc(handler)
		}
	}
	router.NotFoundHandler = s
	return router
}

func (s *daemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info := fmt.Sprintf("Handler not found: %v %v", r.Method, r.RequestURI)
	log.Errorf(info)
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(info))
}

type requestHandler func(version string, w http.ResponseWriter, r *http.Request, objs map[string]string) error

func makeHandlerFunc(method string, route string, version string, f requestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("Calling: %v, %v, request: %v, %v", method, route, r.Method, r.RequestURI)
		if err := f(version, w, r, mux.Vars(r)); err != nil {
			statusCode := http.StatusBadRequest
			if errors.Is(err, errNotFound) {
				statusCode = http.StatusNotFound
			}
			log.Errorf("Handler for %s %s returned error: %s", method, route, err)
			http.Error(w, err.Error(), statusCode)
		}
	}
}

func daemonEnvironmentSetup(c *cli.Context) error {
	var err error

	root := c.GlobalString("root")
	if root == "" {
		return fmt.Errorf("Have to specific root directory")
	}
	if err := util.MkdirIfNotExists(root); err != nil {
		return fmt.Errorf("Invalid root directory: %v", err)
	}

	lockPath := filepath.Join(root, LOCKFILE)
	if lockFile, err = util.LockFile(lockPath); err != nil {
		return fmt.Errorf("Failed to lock the file at %v: %v", lockPath, err.Error())
	}

	if c.GlobalBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logName := c.GlobalString("log")
	if logName != "" {
		logFile, err := os.OpenFile(logName, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetOutput(logFile)
	} else {
		logrus.SetOutput(os.Stdout)
	}

	return nil
}

func environmentCleanup() {
	log.Debug("Cleaning up environment...")
	if lockFile != nil {
		util.UnlockFile(lockFile)
	}
	if logFile != nil {
		logFile.Close()
	}
	if r := recover(); r != nil {
		api.ResponseLogAndError(r)
		os.Exit(1)
	}
}

// registerMappings maps every path and registers the result under a
// generated uuid. If any path fails, everything mapped so far is released
// before the error is returned.
func (s *daemon) registerMappings(paths []string) error {
	for _, path := range paths {
		log.WithFields(logrus.Fields{
			LOG_FIELD_REASON:   LOG_REASON_START,
			LOG_FIELD_EVENT:    LOG_EVENT_REGISTER,
			LOG_FIELD_FILEPATH: path,
		}).Debug()

		mapping, err := sysmap.MapFile(path)
		if err != nil {
			s.releaseMappings()
			return ErrorWithFields("daemon", logrus.Fields{
				LOG_FIELD_REASON:   LOG_REASON_FAILURE,
				LOG_FIELD_EVENT:    LOG_EVENT_REGISTER,
				LOG_FIELD_FILEPATH: path,
			}, "Failed to map %v: %v", path, err)
		}
		id := util.NewUUID()
		s.Mappings[id] = &mappedFile{
			UUID:    id,
			Path:    path,
			mapping: mapping,
		}

		log.WithFields(logrus.Fields{
			LOG_FIELD_REASON:   LOG_REASON_COMPLETE,
			LOG_FIELD_EVENT:    LOG_EVENT_REGISTER,
			LOG_FIELD_MAPPING:  id,
			LOG_FIELD_FILEPATH: path,
			LOG_FIELD_SIZE:     mapping.Length(),
			LOG_FIELD_RANGES:   len(mapping.Ranges()),
		}).Debug()
	}
	return nil
}

func (s *daemon) releaseMappings() {
	for id, m := range s.Mappings {
		if err := m.mapping.Release(); err != nil {
			log.WithFields(logrus.Fields{
				LOG_FIELD_REASON:  LOG_REASON_FAILURE,
				LOG_FIELD_EVENT:   LOG_EVENT_RELEASE,
				LOG_FIELD_MAPPING: id,
			}).Error(err)
		}
		delete(s.Mappings, id)
	}
}

// Start the daemon, serving the mapped content of every path in the
// command arguments until interrupted.
func Start(sockFile string, c *cli.Context) error {
	var err error

	if err = daemonEnvironmentSetup(c); err != nil {
		return err
	}
	defer environmentCleanup()

	paths := c.Args()
	if len(paths) == 0 {
		return fmt.Errorf("No files to serve")
	}

	s := &daemon{
		Mappings: make(map[string]*mappedFile),
	}
	if err := s.registerMappings(paths); err != nil {
		return err
	}
	defer s.releaseMappings()

	s.Router = createRouter(s)

	if err := util.MkdirIfNotExists(filepath.Dir(sockFile)); err != nil {
		return err
	}
	// This should be safe because lock file prevent starting daemon twice
	if _, err := os.Stat(sockFile); err == nil {
		log.Warnf("Remove previous sockfile at %v", sockFile)
		if err := os.Remove(sockFile); err != nil {
			return err
		}
	}

	l, err := net.Listen("unix", sockFile)
	if err != nil {
		return err
	}
	defer l.Close()

	sigs := make(chan os.Signal, 1)
	done := make(chan bool, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		fmt.Printf("Caught signal %s: shutting down.\n", sig)
		done <- true
	}()

	go func() {
		err = http.Serve(l, s.Router)
		if err != nil {
			log.Error("http server error", err.Error())
		}
		done <- true
	}()

	<-done
	return nil
}
