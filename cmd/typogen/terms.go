package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"typogen/internal/termstore"
)

// termsCmd 维护 Redis 中的共享保护词集合。
func (a *app) termsCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "terms",
		Short: "管理共享保护词（Redis 集合）",
	}
	cmd.PersistentFlags().StringVar(&addr, "redis", "", "Redis 地址（覆盖 protect.redis_addr）")

	open := func() (*termstore.Store, error) {
		cfg, err := a.loadConfig()
		if err != nil {
			return nil, err
		}
		if addr != "" {
			cfg.Protect.RedisAddr = addr
		}
		st, err := termstore.Open(redisOptions(cfg))
		if err != nil {
			return nil, configErr("%w", err)
		}
		return st, nil
	}

	add := &cobra.Command{
		Use:   "add <term>...",
		Short: "添加保护词",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open()
			if err != nil {
				return err
			}
			defer st.Close()
			n, err := st.Add(cmd.Context(), args...)
			if err != nil {
				return &exitError{code: exitRuntime, err: err}
			}
			fmt.Fprintf(a.stdout, "added %d\n", n)
			return nil
		},
	}
	rm := &cobra.Command{
		Use:     "rm <term>...",
		Aliases: []string{"remove"},
		Short:   "移除保护词",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open()
			if err != nil {
				return err
			}
			defer st.Close()
			n, err := st.Remove(cmd.Context(), args...)
			if err != nil {
				return &exitError{code: exitRuntime, err: err}
			}
			fmt.Fprintf(a.stdout, "removed %d\n", n)
			return nil
		},
	}
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "列出保护词（字典序）",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open()
			if err != nil {
				return err
			}
			defer st.Close()
			all, err := st.All(cmd.Context())
			if err != nil {
				return &exitError{code: exitRuntime, err: err}
			}
			for _, t := range all {
				fmt.Fprintln(a.stdout, t)
			}
			return nil
		},
	}
	cmd.AddCommand(add, rm, ls)
	return cmd
}
