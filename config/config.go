// server/config/config.go
package config

import (
	"github.com/spf13/viper"
)

// --- Các struct con, phản ánh cấu trúc của YAML ---

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbName"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration string `mapstructure:"expiration"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

type SettlementConfig struct {
	WebhookURL string `mapstructure:"webhookURL"`
}

type MissionConfig struct {
	// CancelWindowSec là số giây partner được hủy acceptance miễn phí.
	CancelWindowSec int `mapstructure:"cancelWindowSec"`
	// DefaultRadiusKm là bán kính tìm mission mặc định cho partner.
	DefaultRadiusKm float64 `mapstructure:"defaultRadiusKm"`
	// CommissionRate là phần trăm nền tảng giữ lại trên giá mission.
	CommissionRate float64 `mapstructure:"commissionRate"`
}

// --- Struct Config chính, bao gồm tất cả các struct con ---

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	S3         S3Config         `mapstructure:"s3"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Mission    MissionConfig    `mapstructure:"mission"`
}

// LoadConfig đọc cấu hình từ file và ghi đè bằng các biến môi trường.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	viper.BindEnv("mongo.uri", "MONGO_URI")
	viper.BindEnv("mongo.dbName", "MONGO_DBNAME")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	viper.BindEnv("s3.bucket", "S3_BUCKET")
	viper.BindEnv("s3.region", "S3_REGION")
	viper.BindEnv("s3.accessKeyID", "S3_ACCESS_KEY_ID")
	viper.BindEnv("s3.secretAccessKey", "S3_SECRET_ACCESS_KEY")
	viper.BindEnv("s3.cloudFrontDomain", "S3_CLOUDFRONT_DOMAIN")
	viper.BindEnv("settlement.webhookURL", "SETTLEMENT_WEBHOOK_URL")
	viper.BindEnv("mission.cancelWindowSec", "MISSION_CANCEL_WINDOW_SEC")
	viper.BindEnv("mission.defaultRadiusKm", "MISSION_DEFAULT_RADIUS_KM")
	viper.BindEnv("mission.commissionRate", "MISSION_COMMISSION_RATE")

	// Giá trị mặc định khớp với hành vi quan sát được của sản phẩm.
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("mission.cancelWindowSec", 30)
	viper.SetDefault("mission.defaultRadiusKm", 1.0)
	viper.SetDefault("mission.commissionRate", 0.2)

	// Đọc file config.yaml
	// Nếu file không tồn tại, Viper sẽ chỉ sử dụng các biến môi trường.
	err = viper.ReadInConfig()
	if err != nil {
		// Chỉ trả về lỗi nếu đó không phải là lỗi "không tìm thấy file"
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return
}
