package keyindex

import (
	"fmt"

	"github.com/dep2p/go-corestore/pkg/lib/crypto"
	"github.com/dep2p/go-corestore/pkg/types"
)

// DefaultIndex 默认核心的保留索引键
const DefaultIndex = "default"

// Request 核心打开请求
//
// 文本与二进制的密钥表示都被接受；文本形式在解析时一次性
// 解码为二进制，解码失败返回包装了 types.ErrInvalidKey 的错误。
type Request struct {
	// Default 请求默认核心
	Default bool

	// Name 符号名（原样用作索引，便于生成可读的存储路径）
	Name string

	// Key 公钥（二进制）
	Key types.Key

	// KeyHex 公钥（十六进制文本）
	KeyHex string

	// DiscoveryKey 发现密钥（二进制）
	DiscoveryKey types.Key

	// DiscoveryKeyHex 发现密钥（十六进制文本）
	DiscoveryKeyHex string

	// SecretKey 私钥
	SecretKey types.Key

	// KeyPair 完整密钥对
	KeyPair *types.KeyPair
}

// HasExplicitKey 请求是否携带显式密钥材料
//
// 注册表据此决定 getDefault 是否标记默认寻址。
func (r *Request) HasExplicitKey() bool {
	return !r.Key.IsZero() || r.KeyHex != "" || !r.SecretKey.IsZero() || r.KeyPair != nil
}

// hasDiscoveryKey 请求是否携带发现密钥
func (r *Request) hasDiscoveryKey() bool {
	return !r.DiscoveryKey.IsZero() || r.DiscoveryKeyHex != ""
}

// Result 规范化解析结果
type Result struct {
	// Index 规范索引键：保留默认标记、符号名或发现密钥十六进制
	Index string

	// Key 解析出的公钥（发现模式查找时为空）
	Key types.Key

	// SecretKey 解析出的私钥（只读打开时为空）
	SecretKey types.Key

	// DiscoveryOnly 仅凭发现密钥查找（不在本地创建）
	DiscoveryOnly bool

	// KeyAddressed 索引由密钥派生（存储根需要分片）
	KeyAddressed bool
}

// Resolve 解析请求为规范索引与密钥材料
//
// 解析顺序（首个命中生效）：
//  1. 默认标记：Default 置位且无任何显式密钥
//  2. 符号名：Name 非空且无任何显式密钥
//  3. 密钥寻址：发现密钥直接作索引；公钥派生发现密钥作索引
//     （绝不以原始公钥为索引，保证入口无关的唯一规范索引）；
//     两者皆无时生成全新密钥对
func Resolve(req *Request) (*Result, error) {
	if req.Default && !req.HasExplicitKey() {
		return &Result{Index: DefaultIndex}, nil
	}

	if req.Name != "" && !req.HasExplicitKey() {
		return &Result{Index: req.Name}, nil
	}

	key, secret, err := resolveKeyMaterial(req)
	if err != nil {
		return nil, err
	}

	// 发现密钥寻址：无法逆推公钥，索引直接取发现密钥
	if req.hasDiscoveryKey() {
		dk := req.DiscoveryKey
		if dk.IsZero() {
			dk, err = types.DecodeKey(req.DiscoveryKeyHex)
			if err != nil {
				return nil, fmt.Errorf("decode discovery key: %w", err)
			}
		} else if len(dk) != types.KeySize {
			return nil, fmt.Errorf("%w: discovery key must be %d bytes, got %d",
				types.ErrInvalidKey, types.KeySize, len(dk))
		}
		return &Result{
			Index:         dk.Hex(),
			Key:           key,
			SecretKey:     secret,
			DiscoveryOnly: key.IsZero() && secret.IsZero(),
			KeyAddressed:  true,
		}, nil
	}

	// 无任何密钥材料：创建新日志
	if key.IsZero() {
		kp, err := crypto.GenerateKeyPair(nil)
		if err != nil {
			return nil, fmt.Errorf("generate keypair: %w", err)
		}
		key, secret = kp.PublicKey, kp.SecretKey
	}

	return &Result{
		Index:        crypto.DiscoveryKey(key).Hex(),
		Key:          key,
		SecretKey:    secret,
		KeyAddressed: true,
	}, nil
}

// resolveKeyMaterial 收敛公钥/私钥的各种来源
func resolveKeyMaterial(req *Request) (types.Key, types.Key, error) {
	var key, secret types.Key

	switch {
	case req.KeyPair != nil:
		if err := req.KeyPair.Validate(); err != nil {
			return nil, nil, fmt.Errorf("key pair: %w", err)
		}
		key = req.KeyPair.PublicKey.Clone()
		secret = req.KeyPair.SecretKey.Clone()

	case !req.SecretKey.IsZero():
		kp, err := crypto.KeyPairFromSecret(req.SecretKey)
		if err != nil {
			return nil, nil, fmt.Errorf("secret key: %w", err)
		}
		key, secret = kp.PublicKey, kp.SecretKey

	case !req.Key.IsZero():
		if len(req.Key) != types.KeySize {
			return nil, nil, fmt.Errorf("%w: public key must be %d bytes, got %d",
				types.ErrInvalidKey, types.KeySize, len(req.Key))
		}
		key = req.Key.Clone()

	case req.KeyHex != "":
		decoded, err := types.DecodeKey(req.KeyHex)
		if err != nil {
			return nil, nil, fmt.Errorf("decode key: %w", err)
		}
		key = decoded
	}

	return key, secret, nil
}
