package app

import (
	"time"

	"github.com/wellworld/core/internal/config"
	http_init "github.com/wellworld/core/internal/delivery/http/init"
	http_opportunity "github.com/wellworld/core/internal/delivery/http/opportunity"
	http_room "github.com/wellworld/core/internal/delivery/http/room"
	ws_room "github.com/wellworld/core/internal/delivery/ws/room"
	infra_catalog "github.com/wellworld/core/internal/infra/catalog"
	infra_pg_init "github.com/wellworld/core/internal/infra/postgres/init"
	infra_postgres_room "github.com/wellworld/core/internal/infra/postgres/room"
	infra_redis_feed "github.com/wellworld/core/internal/infra/redis/feed"
	infra_redis_init "github.com/wellworld/core/internal/infra/redis/init"
	"github.com/wellworld/core/internal/service/countrymatch"
	usecase_opportunity "github.com/wellworld/core/internal/usecase/opportunity"
	usecase_room "github.com/wellworld/core/internal/usecase/room"
)

func Go(cfg *config.Config) {
	redisConn := infra_redis_init.MustEstablishConn(cfg.Redis)
	pgConn := infra_pg_init.MustEstablishConn(cfg.Postgres)

	roomRepository := infra_postgres_room.New(pgConn)
	changeFeed := infra_redis_feed.New(redisConn)
	matcher := countrymatch.New()

	fetcher := infra_catalog.New(cfg.Catalog.FeedURL, 10*time.Second)
	catalogUC := usecase_opportunity.New(fetcher)

	roomUC := usecase_room.New(roomRepository)

	hub := ws_room.NewHub(roomUC)
	go hub.Run()

	controllerPool := http_init.NewControllerPool()
	controllerPool.Add(http_room.New(roomUC, hub, roomRepository, changeFeed, catalogUC, matcher))
	controllerPool.Add(http_opportunity.New(catalogUC, matcher))

	controllerPool.Register()
	controllerPool.RunAll(cfg.HTTP.Port)
}
