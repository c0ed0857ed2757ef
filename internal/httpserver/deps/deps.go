package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marksync/marksync/internal/domain"
	"github.com/marksync/marksync/internal/index"
	"github.com/marksync/marksync/internal/logger"
	"github.com/marksync/marksync/internal/resolve"
	redisstore "github.com/marksync/marksync/internal/store/redis"
	"github.com/marksync/marksync/internal/syncer"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // IPs allowed to access healthz/readyz endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)

	RedisClient *redis.Client            // Redis client connection
	TreeIndex   *index.TreeIndex         // In-memory bookmark tree index
	Syncer      *syncer.Engine           // Sync pass orchestrator
	Resolver    *resolve.Engine          // Conflict resolution engine
	Classifier  *domain.Classifier       // Conflict classifier
	History     *redisstore.HistoryStore // Resolution history reader (nil if redis disabled)

	SyncTrigger  chan struct{} // Channel to trigger an immediate sync pass
	DrainTrigger chan struct{} // Channel to trigger an immediate queue drain

	DefaultStrategy resolve.Strategy // Strategy used when requests omit one
	ResolveOptions  resolve.Options  // Strategy tuning shared by API and scheduler
}
