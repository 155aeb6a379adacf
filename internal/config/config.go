package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	DBType     string `env:"DBType" envDefault:"sqlite"`
	DSNURL     string `env:"DSN_URL" envDefault:""`
	DBUser     string `env:"DBUser" envDefault:""`
	DBPassword string `env:"DBPassword" envDefault:""`
	DBAddr     string `env:"DBAddr" envDefault:""`
	DBName     string `env:"DBName" envDefault:"echoes"`
	DBPath     string `env:"DBPath" envDefault:"datas/echoes.db"`
	DBPort     string `env:"DBPort" envDefault:"3306"`

	StorageType          string `env:"STORAGE_TYPE" envDefault:"local"`
	StorageLocalDir      string `env:"STORAGE_LOCAL_DIR" envDefault:"datas/media"`
	StoragePublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"/files"`
	StorageSignSecret    string `env:"STORAGE_SIGN_SECRET" envDefault:""`

	// S3-compatible storage
	StorageS3Region          string `env:"STORAGE_S3_REGION"`
	StorageS3Bucket          string `env:"STORAGE_S3_BUCKET"`
	StorageS3Prefix          string `env:"STORAGE_S3_PREFIX"`
	StorageS3Endpoint        string `env:"STORAGE_S3_ENDPOINT"`
	StorageS3AccessKeyID     string `env:"STORAGE_S3_ACCESS_KEY_ID"`
	StorageS3SecretAccessKey string `env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	StorageS3SessionToken    string `env:"STORAGE_S3_SESSION_TOKEN"`
	StorageS3ForcePathStyle  bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"`

	// Alibaba OSS storage
	StorageOSSEndpoint        string `env:"STORAGE_OSS_ENDPOINT"`
	StorageOSSBucket          string `env:"STORAGE_OSS_BUCKET"`
	StorageOSSPrefix          string `env:"STORAGE_OSS_PREFIX"`
	StorageOSSAccessKeyID     string `env:"STORAGE_OSS_ACCESS_KEY_ID"`
	StorageOSSAccessKeySecret string `env:"STORAGE_OSS_ACCESS_KEY_SECRET"`

	// Tencent COS storage
	StorageCOSBucketURL string `env:"STORAGE_COS_BUCKET_URL"`
	StorageCOSPrefix    string `env:"STORAGE_COS_PREFIX"`
	StorageCOSSecretID  string `env:"STORAGE_COS_SECRET_ID"`
	StorageCOSSecretKey string `env:"STORAGE_COS_SECRET_KEY"`

	// Cloudflare R2 storage
	StorageR2AccountID       string `env:"STORAGE_R2_ACCOUNT_ID"`
	StorageR2Endpoint        string `env:"STORAGE_R2_ENDPOINT"`
	StorageR2Region          string `env:"STORAGE_R2_REGION" envDefault:"auto"`
	StorageR2Bucket          string `env:"STORAGE_R2_BUCKET"`
	StorageR2Prefix          string `env:"STORAGE_R2_PREFIX"`
	StorageR2AccessKeyID     string `env:"STORAGE_R2_ACCESS_KEY_ID"`
	StorageR2SecretAccessKey string `env:"STORAGE_R2_SECRET_ACCESS_KEY"`

	// Supabase Storage
	StorageSupabaseURL        string `env:"STORAGE_SUPABASE_URL"`
	StorageSupabaseServiceKey string `env:"STORAGE_SUPABASE_SERVICE_KEY"`
	StorageSupabaseBucket     string `env:"STORAGE_SUPABASE_BUCKET" envDefault:"echoes-media"`

	// Video generation providers
	VideoProvider   string `env:"VIDEO_PROVIDER" envDefault:"runway"`
	RunwayAPIKey    string `env:"RUNWAY_API_KEY" envDefault:""`
	RunwayBaseURL   string `env:"RUNWAY_BASE_URL" envDefault:"https://api.dev.runwayml.com"`
	RunwayModel     string `env:"RUNWAY_MODEL" envDefault:"gen3a_turbo"`
	KlingAPIKey     string `env:"KLING_API_KEY" envDefault:""`
	KlingBaseURL    string `env:"KLING_BASE_URL" envDefault:"https://api.piapi.ai/api/kling/v1"`
	ClipDurationSec int    `env:"CLIP_DURATION_SECONDS" envDefault:"5"`
	ClipEstimateSec int    `env:"CLIP_ESTIMATE_SECONDS" envDefault:"90"`
	SignedURLTTLSec int    `env:"SIGNED_URL_TTL_SECONDS" envDefault:"3600"`
	FFmpegPath      string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFmpegWorkDir   string `env:"FFMPEG_WORK_DIR" envDefault:"datas/tmp"`

	// Credit economics
	ClipCreditCost     int `env:"CLIP_CREDIT_COST" envDefault:"1"`
	SignupCredits      int `env:"SIGNUP_CREDITS" envDefault:"3"`
	ReferralCredits    int `env:"REFERRAL_CREDITS" envDefault:"5"`
	ShareRewardCredits int `env:"SHARE_REWARD_CREDITS" envDefault:"1"`

	// Payment webhook
	WebhookSellerToken string `env:"WEBHOOK_SELLER_TOKEN" envDefault:""`

	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"echoes-app"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`
}

func ParseConfig() (Config, error) {
	var Conf Config
	err := env.Parse(&Conf)
	if err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	logrus.Debugf("%#v\n", Conf)
	return Conf, nil
}
