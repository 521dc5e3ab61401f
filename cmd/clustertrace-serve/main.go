// Command clustertrace-serve runs the query server of spec.md §5: an HTTP
// front end accepting raw log uploads and serving job and uptime queries
// against them.
//
// Grounded on server/server.go's main: stdlib flag for configuration,
// golang/glog for logging, gorilla/mux wired up by queryserver.NewRouter.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	log "github.com/golang/glog"

	"github.com/hpctrace/clustertrace/config"
	"github.com/hpctrace/clustertrace/queryserver"
)

var (
	port          = flag.Int("port", 7600, "The clustertrace HTTP port.")
	cacheSize     = flag.Int("cache_size", 25, "The maximum number of collections to keep open at once.")
	clusterConfig = flag.String("cluster_config", "", "Path to the cluster configuration JSON document (spec.md §6). If empty, capacity-relative metrics are reported unavailable.")
)

func main() {
	flag.Parse()
	defer log.Flush()

	var cfg config.ClusterConfig
	if *clusterConfig != "" {
		f, err := os.Open(*clusterConfig)
		if err != nil {
			log.Exitf("opening cluster config %q: %v", *clusterConfig, err)
		}
		defer f.Close()
		cfg, err = config.Load(f, nil)
		if err != nil {
			log.Exitf("loading cluster config %q: %v", *clusterConfig, err)
		}
	}

	cache, err := queryserver.NewCache(*cacheSize)
	if err != nil {
		log.Exitf("creating collection cache: %v", err)
	}

	s := &queryserver.Server{Cache: cache, Config: cfg}
	r := queryserver.NewRouter(s)

	addr := fmt.Sprintf(":%d", *port)
	log.Infof("clustertrace-serve listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Exitf("serving: %v", err)
	}
}
