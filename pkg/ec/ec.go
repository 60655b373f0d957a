/*
 * Copyright 2020, 2021, 2022 Hewlett Packard Enterprise Development LP
 * Other additional copyright holders may be indicated within.
 *
 * The entirety of this work is licensed under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 *
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	log "github.com/sirupsen/logrus"
)

var (
	GET_METHOD    = strings.ToUpper("Get")
	POST_METHOD   = strings.ToUpper("Post")
	PUT_METHOD    = strings.ToUpper("Put")
	PATCH_METHOD  = strings.ToUpper("Patch")
	DELETE_METHOD = strings.ToUpper("Delete")
)

// Logger is the parent log handle routers receive during Init.
type Logger = *log.Entry

// Route describes a single endpoint hosted by a router.
type Route struct {
	Name        string
	Method      string
	Path        string
	HandlerFunc http.HandlerFunc
}

// Routes -
type Routes []Route

// Router is one API component hosted by the element controller. Init
// runs before any route is registered; Start runs after all routers
// initialized.
type Router interface {
	Routes() Routes

	Name() string
	Init(Logger) error
	Start() error
	Close() error
}

// Routers -
type Routers []Router

// Options -
type Options struct {
	Http    bool
	Port    int
	Log     bool
	Verbose bool
}

func NewDefaultOptions() *Options {
	return &Options{Http: true, Port: 8080, Log: false, Verbose: false}
}

// BindFlags registers the element controller command line options.
func BindFlags(fs *flag.FlagSet) *Options {
	opts := NewDefaultOptions()

	fs.BoolVar(&opts.Http, "http", opts.Http, "Host an HTTP server for the controller API")
	fs.IntVar(&opts.Port, "port", opts.Port, "Element controller port")
	fs.BoolVar(&opts.Log, "log", opts.Log, "Log requests handled by the controller")
	fs.BoolVar(&opts.Verbose, "verbose", opts.Verbose, "Enable verbose logging")

	return opts
}

// Controller hosts a set of routers as a single HTTP service.
type Controller struct {
	Name    string
	Port    int
	Version string
	Routers Routers

	Log Logger

	options Options
	router  *mux.Router
	server  *http.Server
}

// ResponseWriter is an in-memory http.ResponseWriter for requests
// delivered with Send instead of over a socket.
type ResponseWriter struct {
	Hdr        http.Header
	StatusCode int
	Buffer     *bytes.Buffer
}

func NewResponseWriter() *ResponseWriter {
	return &ResponseWriter{
		Hdr:        http.Header{},
		StatusCode: http.StatusOK,
		Buffer:     bytes.NewBuffer([]byte{}),
	}
}

func (r *ResponseWriter) Header() http.Header         { return r.Hdr }
func (r *ResponseWriter) Write(b []byte) (int, error) { return r.Buffer.Write(b) }
func (r *ResponseWriter) WriteHeader(s int)           { r.StatusCode = s }

// Init prepares the routers and builds the route table. Must run before
// Run or Send.
func (c *Controller) Init(opts *Options) error {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	c.options = *opts

	if opts.Port != 0 {
		c.Port = opts.Port
	}

	if c.Log == nil {
		logger := log.StandardLogger()
		if opts.Verbose {
			logger.SetLevel(log.DebugLevel)
		}
		c.Log = logger.WithField("Controller", c.Name)
	}

	m := mux.NewRouter().StrictSlash(true)

	for _, router := range c.Routers {
		if err := router.Init(c.Log); err != nil {
			return fmt.Errorf("%s failed to initialize: %w", router.Name(), err)
		}

		for _, route := range router.Routes() {
			handler := route.HandlerFunc
			if opts.Log {
				handler = c.logRequest(route.Name, handler)
			}

			m.
				Name(route.Name).
				Methods(route.Method).
				Path(route.Path).
				Handler(handler)
		}
	}

	for _, router := range c.Routers {
		if err := router.Start(); err != nil {
			return fmt.Errorf("%s failed to start: %w", router.Name(), err)
		}
	}

	c.router = m
	return nil
}

func (c *Controller) logRequest(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		handler(w, r)
		c.Log.WithFields(log.Fields{
			"Route":    name,
			"Method":   r.Method,
			"Uri":      r.RequestURI,
			"Duration": time.Since(start).String(),
		}).Info("Request handled")
	}
}

// Run hosts the controller API over HTTP until Close. Blocks.
func (c *Controller) Run() error {
	if c.router == nil {
		return fmt.Errorf("%s not initialized", c.Name)
	}

	if !c.options.Http {
		return fmt.Errorf("%s has no transport configured", c.Name)
	}

	// Permissive cross-origin handling so debug tooling hosted
	// elsewhere can reach the API.
	cr := cors.AllowAll()

	c.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Port),
		Handler: cr.Handler(c.router),
	}

	c.Log.WithField("Port", c.Port).Info("Controller running")
	err := c.server.ListenAndServe()
	if err == http.ErrServerClosed {
		err = nil
	}
	return err
}

// Send delivers a request directly to the route table, bypassing the
// network. Useful for in-process clients and tests.
func (c *Controller) Send(w http.ResponseWriter, r *http.Request) {
	c.router.ServeHTTP(w, r)
}

// Close shuts down the HTTP server, then the routers in reverse order.
func (c *Controller) Close() error {
	if c.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.server.Shutdown(ctx)
		c.server = nil
	}

	for i := len(c.Routers) - 1; i >= 0; i-- {
		if err := c.Routers[i].Close(); err != nil {
			return err
		}
	}

	return nil
}

// Params returns the path parameters of a routed request.
func Params(r *http.Request) map[string]string {
	return mux.Vars(r)
}

// UnmarshalRequest decodes a JSON request body into model.
func UnmarshalRequest(r *http.Request, model interface{}) error {
	return json.NewDecoder(r.Body).Decode(model)
}

// EncodeResponse writes the model as the JSON response body, or the
// error as an ErrorResponse when non-nil.
func EncodeResponse(s interface{}, err error, w http.ResponseWriter) {
	if err != nil {
		var controllerError *ControllerError
		if !errors.As(err, &controllerError) {
			controllerError = NewErrInternalServerError().WithError(err)
		}

		w.WriteHeader(controllerError.StatusCode)

		response := ErrorResponse{
			Status: controllerError.StatusCode,
			Cause:  controllerError.Cause,
		}
		if controllerError.Err != nil {
			response.Error = controllerError.Err.Error()
		}
		if s != nil {
			if model, err := json.Marshal(s); err == nil {
				response.Model = string(model)
			}
		}

		json.NewEncoder(w).Encode(&response)
		return
	}

	if s != nil {
		if err := json.NewEncoder(w).Encode(s); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}
