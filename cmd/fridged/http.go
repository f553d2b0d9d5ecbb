package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	log "github.com/sirupsen/logrus"
)

//go:embed status.tmpl
var statusTmpl string

var statuspage = template.Must(template.New("status").Parse(statusTmpl))

func handleStatus(f *Fridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		j, err := json.Marshal(f.Snapshot())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data := struct{ InitialJSON string }{InitialJSON: string(j)}
		if err := statuspage.ExecuteTemplate(w, "status", data); err != nil {
			log.Errorf("status template: %s", err)
		}
	}
}

func handleJSON(f *Fridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		j, err := json.Marshal(f.Snapshot())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(j)
	}
}

// JSONClient serves the fridge state as JSON and a small status page.
func JSONClient(ctx context.Context, port string, f *Fridge) {
	if port == "" {
		port = "8080"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleStatus(f))
	mux.HandleFunc("/status", handleJSON(f))

	srv := &http.Server{Addr: fmt.Sprintf("0.0.0.0:%s", port), Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Debugf("JSON server starting on port %s ...", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error(err)
	}
}
