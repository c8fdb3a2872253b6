package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veilcrawl/veilcrawl/internal/register"
)

var (
	registerURLArg   string
	registerProxyArg string
)

func autoRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto-register",
		Short: "Attempt account registration on a site",
		Long: `Open the target page in a headless browser, detect its registration
form, fill it with generated credentials, and submit. Overlay targets need
--proxy pointed at the network's SOCKS gateway.`,
		RunE: runAutoRegister,
	}

	cmd.Flags().StringVarP(&registerURLArg, "url", "u", "", "registration page URL")
	cmd.Flags().StringVar(&registerProxyArg, "proxy", "", "SOCKS5 gateway (host:port) to route the browser through")
	cmd.MarkFlagRequired("url")

	return cmd
}

func runAutoRegister(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	proxy := registerProxyArg
	if proxy == "" && len(cfg.Tor.SocksProxies) > 0 {
		proxy = cfg.Tor.SocksProxies[0]
	}

	reg, err := register.New(proxy, logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	creds := register.GenerateCredentials()
	result, err := reg.Register(registerURLArg, creds)
	if err != nil {
		return err
	}

	if result.Submitted {
		fmt.Println("Registration submitted")
		fmt.Println("  username:", creds.Username)
		fmt.Println("  password:", creds.Password)
		fmt.Println("  final URL:", result.FinalURL)
	} else {
		fmt.Println("Registration not attempted:", result.Notes)
	}
	return nil
}
