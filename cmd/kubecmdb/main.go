// Command kubecmdb reconciles Kubernetes telemetry into a configuration
// graph.
package main

import (
	goflag "flag"
	"os"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kubecmdb",
		Short:         "Reconcile Kubernetes telemetry into a CMDB graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: search $KUBECMDB_CONFIG, ./kubecmdb.yaml, ~/.config/kubecmdb, /etc/kubecmdb)")

	klogFlags := goflag.NewFlagSet("klog", goflag.ExitOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(newServeCmd(), newSyncCmd(), newExportCmd(), newModelsCmd(), newVersionCmd())
	return root
}

func main() {
	go wait.Forever(klog.Flush, 5*time.Second)

	if err := newRootCmd().Execute(); err != nil {
		klog.ErrorS(err, "Command failed")
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}
