package model

import (
	"context"

	"echoes/internal/entity"
)

// SeedDefaults ensures the catalogue rows the app sells against exist:
// purchasable credit packs and the stock music tracks for final videos.
// Seeding is idempotent, rows are keyed by product id and track name.
func SeedDefaults(ctx context.Context, repo Repository) error {
	if repo == nil {
		return nil
	}

	for _, pack := range defaultCreditPacks() {
		p := pack
		if err := repo.UpsertCreditPack(ctx, &p); err != nil {
			return err
		}
	}

	for _, track := range defaultMusicTracks() {
		t := track
		if err := repo.UpsertMusicTrack(ctx, &t); err != nil {
			return err
		}
	}

	return nil
}

func defaultCreditPacks() []entity.DbCreditPack {
	return []entity.DbCreditPack{
		{
			ProductID:  "echoes-starter-10",
			Name:       "Starter Pack",
			Credits:    10,
			PriceCents: 499,
			IsActive:   true,
		},
		{
			ProductID:  "echoes-creator-30",
			Name:       "Creator Pack",
			Credits:    30,
			PriceCents: 1199,
			IsActive:   true,
		},
		{
			ProductID:  "echoes-studio-100",
			Name:       "Studio Pack",
			Credits:    100,
			PriceCents: 2999,
			IsActive:   true,
		},
	}
}

func defaultMusicTracks() []entity.DbMusicTrack {
	return []entity.DbMusicTrack{
		{
			Name:            "Gentle Memories",
			FilePath:        "music/gentle_memories.mp3",
			DurationSeconds: 95,
			IsActive:        true,
		},
		{
			Name:            "Golden Hour",
			FilePath:        "music/golden_hour.mp3",
			DurationSeconds: 110,
			IsActive:        true,
		},
		{
			Name:            "First Steps",
			FilePath:        "music/first_steps.mp3",
			DurationSeconds: 88,
			IsActive:        true,
		},
		{
			Name:            "Quiet Morning",
			FilePath:        "music/quiet_morning.mp3",
			DurationSeconds: 102,
			IsActive:        true,
		},
	}
}
