// Package main 提供 corestore 命令行入口
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	corestore "github.com/dep2p/go-corestore"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/log"
)

var logger = log.Logger("corestore/cmd")

const usage = `用法: corestore <命令> [参数]

命令:
  create  创建（或打开）一个核心并打印其信息
  append  从标准输入逐行追加数据块
  info    打印存储概要
  list    列出存储中的核心
  serve   监听 TCP 端口，为入站连接提供复制
  join    连接远端存储并复制

每个命令都接受 -storage 指定存储根目录，-h 查看命令参数。
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("缺少命令")
	}

	switch args[0] {
	case "create":
		return runCreate(args[1:])
	case "append":
		return runAppend(args[1:])
	case "info":
		return runInfo(args[1:])
	case "list":
		return runList(args[1:])
	case "serve":
		return runServe(args[1:])
	case "join":
		return runJoin(args[1:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("未知命令: %s", args[0])
	}
}

// ============================================================================
// 公共辅助
// ============================================================================

// coreInfo 单个核心的打印信息
type coreInfo struct {
	Index        string `json:"index"`
	Key          string `json:"key"`
	DiscoveryKey string `json:"discoveryKey"`
	Length       uint64 `json:"length"`
	Writable     bool   `json:"writable"`
}

// openCore 打开核心并等待就绪，空名字打开默认核心
func openCore(store *corestore.Store, name string) (interfaces.CoreHandle, error) {
	var (
		core interfaces.CoreHandle
		err  error
	)
	if name == "" {
		core, err = store.Default(corestore.CoreOptions{})
	} else {
		core, err = store.Get(corestore.CoreOptions{Name: name})
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := core.Ready(ctx); err != nil {
		return nil, fmt.Errorf("核心就绪失败: %w", err)
	}
	return core, nil
}

// describeCore 收集核心的打印信息
func describeCore(core interfaces.CoreHandle, index string) coreInfo {
	return coreInfo{
		Index:        index,
		Key:          core.Key().Hex(),
		DiscoveryKey: core.DiscoveryKey().Hex(),
		Length:       core.Log().Length(),
		Writable:     core.Writable(),
	}
}

// printResult 按格式输出结果
func printResult(v any, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	switch val := v.(type) {
	case coreInfo:
		fmt.Printf("索引:     %s\n", val.Index)
		fmt.Printf("公钥:     %s\n", val.Key)
		fmt.Printf("发现密钥: %s\n", val.DiscoveryKey)
		fmt.Printf("长度:     %d\n", val.Length)
		fmt.Printf("可写:     %v\n", val.Writable)
	case []coreInfo:
		for _, c := range val {
			fmt.Printf("%s  key=%s  length=%d  writable=%v\n",
				c.Index, c.Key, c.Length, c.Writable)
		}
	case corestore.Info:
		fmt.Printf("存储ID:   %s\n", val.ID)
		fmt.Printf("默认公钥: %s\n", val.DefaultKey)
		fmt.Printf("发现密钥: %s\n", val.DiscoveryKey)
		fmt.Printf("核心数:   %d\n", val.Cores)
	default:
		fmt.Printf("%v\n", v)
	}
	return nil
}

// waitForSignal 阻塞到收到中断信号
func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

// namedRoots 扫描存储根下的命名核心目录
//
// 密钥寻址的核心在 cores/ 分片之下，其余目录即命名核心
// （含保留的 default）。
func namedRoots(base string) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != "cores" {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ============================================================================
// 子命令
// ============================================================================

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	base := fs.String("storage", "corestore-data", "存储根目录")
	name := fs.String("name", "", "符号名（空 = 默认核心）")
	asJSON := fs.Bool("json", false, "JSON 输出")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := corestore.Open(*base)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	core, err := openCore(store, *name)
	if err != nil {
		return err
	}

	index := *name
	if index == "" {
		index = "default"
	}
	return printResult(describeCore(core, index), *asJSON)
}

func runAppend(args []string) error {
	fs := flag.NewFlagSet("append", flag.ExitOnError)
	base := fs.String("storage", "corestore-data", "存储根目录")
	name := fs.String("name", "", "符号名（空 = 默认核心）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := corestore.Open(*base)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	core, err := openCore(store, *name)
	if err != nil {
		return err
	}
	if !core.Writable() {
		return fmt.Errorf("核心不可写")
	}

	scanner := bufio.NewScanner(os.Stdin)
	var count int
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		block := make([]byte, len(line))
		copy(block, line)
		if _, err := core.Log().Append(block); err != nil {
			return fmt.Errorf("追加失败: %w", err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取输入: %w", err)
	}

	fmt.Printf("已追加 %d 个块，长度 %d\n", count, core.Log().Length())
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	base := fs.String("storage", "corestore-data", "存储根目录")
	asJSON := fs.Bool("json", false, "JSON 输出")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := corestore.Open(*base)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	// 默认核心存在则加载，让概要带上密钥
	if roots, err := namedRoots(*base); err == nil {
		for _, root := range roots {
			if root == "default" {
				if _, err := openCore(store, ""); err != nil {
					return err
				}
			}
		}
	}

	return printResult(store.Info(), *asJSON)
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	base := fs.String("storage", "corestore-data", "存储根目录")
	asJSON := fs.Bool("json", false, "JSON 输出")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := corestore.Open(*base)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	roots, err := namedRoots(*base)
	if err != nil {
		return fmt.Errorf("扫描存储根: %w", err)
	}

	infos := make([]coreInfo, 0, len(roots))
	for _, root := range roots {
		name := root
		if name == "default" {
			name = ""
		}
		core, err := openCore(store, name)
		if err != nil {
			return err
		}
		infos = append(infos, describeCore(core, root))
	}

	return printResult(infos, *asJSON)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	base := fs.String("storage", "corestore-data", "存储根目录")
	listen := fs.String("listen", ":9276", "监听地址")
	encrypt := fs.Bool("encrypt", false, "加密复制会话")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := corestore.Open(*base)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	// 打开磁盘上的全部核心，入站会话才有可附加的内容
	roots, err := namedRoots(*base)
	if err == nil {
		for _, root := range roots {
			name := root
			if name == "default" {
				name = ""
			}
			if _, err := openCore(store, name); err != nil {
				return err
			}
		}
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return fmt.Errorf("监听失败: %w", err)
	}
	defer ln.Close()

	logger.Info("开始提供复制服务",
		"addr", ln.Addr().String(),
		"storage", filepath.Clean(*base),
		"encrypt", *encrypt)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			logger.Info("入站连接", "remote", conn.RemoteAddr().String())

			if _, err := store.Replicate(conn, corestore.ReplicateOptions{
				Initiator: false,
				Encrypt:   *encrypt,
				KeepAlive: true,
			}); err != nil {
				logger.Warn("打开会话失败",
					"remote", conn.RemoteAddr().String(),
					"error", err)
				conn.Close()
			}
		}
	}()

	waitForSignal()
	logger.Info("收到退出信号，关闭存储")
	return nil
}

func runJoin(args []string) error {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	base := fs.String("storage", "corestore-data", "存储根目录")
	addr := fs.String("addr", "", "远端地址 (host:port)")
	keyHex := fs.String("key", "", "希望复制的核心公钥（十六进制）")
	encrypt := fs.Bool("encrypt", false, "加密复制会话")
	anchorHex := fs.String("default-key", "", "默认核心公钥（加密会话的能力锚点）")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *addr == "" {
		return fmt.Errorf("必须指定 -addr")
	}

	store, err := corestore.Open(*base)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	// 指定公钥时预先打开对应核心；加密会话需要默认核心
	if *keyHex != "" {
		core, err := store.Get(corestore.CoreOptions{KeyHex: *keyHex})
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = core.Ready(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("核心就绪失败: %w", err)
		}
	}
	if *encrypt {
		// 能力锚点：给定对端默认公钥时登记为本地默认身份，
		// 否则沿用本地已有的默认核心
		opts := corestore.CoreOptions{}
		if *anchorHex != "" {
			opts.KeyHex = *anchorHex
		}
		core, err := store.Default(opts)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = core.Ready(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("默认核心就绪失败: %w", err)
		}
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		return fmt.Errorf("连接失败: %w", err)
	}

	sess, err := store.Replicate(conn, corestore.ReplicateOptions{
		Initiator: true,
		Encrypt:   *encrypt,
		KeepAlive: true,
	})
	if err != nil {
		conn.Close()
		return err
	}

	logger.Info("复制会话已建立", "remote", *addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("收到退出信号")
	case <-sess.Stream().Ended():
		logger.Info("对端结束会话")
	case <-sess.Stream().Closed():
		logger.Info("会话已关闭")
	}
	return nil
}
