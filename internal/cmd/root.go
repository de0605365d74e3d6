package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version   string
	BuildTime string
	cfgFile   string
)

var rootCmd = &cobra.Command{
	Use:   "steamapi",
	Short: "Steam Web API dispatcher with a shared key pool",
	Long: `steamapi calls the Steam Web API through a pool of API keys, rotating
away from keys that hit the rate limit and balancing daily usage across
processes that share the same Redis.`,
	SilenceUsage: true,
	RunE:         runServe, // 默认启动服务
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("redis", "", `redis address, or "memory" for an in-process store`)
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug/info/warn/error)")

	viper.BindPFlag("redis.addr", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./data")
		viper.AddConfigPath("$HOME/.steamapi")
	}

	// STEAMAPI_STEAM_TIMEOUT -> steam.timeout
	viper.SetEnvPrefix("steamapi")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// LoadOrCreate 会在 serve 中创建默认文件
		if cfgFile == "" {
			viper.SetConfigFile("./config.yaml")
		}
	} else {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
