package teleapp

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fachebot/talk-digest-bot/internal/logger"

	"github.com/zelenin/go-tdlib/client"
)

type TeleApp struct {
	user       *client.User
	tdClient   *client.Client
	listener   *client.Listener
	parameters *client.SetTdlibParametersRequest
	connected  atomic.Bool
	usersMu    sync.RWMutex
	usersCache map[int64]*client.User
	chatsMu    sync.RWMutex
	chatsCache map[int64]*client.Chat
	ctx        context.Context
	cancel     context.CancelFunc
	ctxMu      sync.Mutex
}

func NewApp(apiId int32, apiHash, dataDir string) *TeleApp {
	_, err := client.SetLogVerbosityLevel(&client.SetLogVerbosityLevelRequest{
		NewVerbosityLevel: 1,
	})
	if err != nil {
		logger.Fatalf("[TeleApp] 设置日志级别错误, %s", err)
	}

	parameters := &client.SetTdlibParametersRequest{
		UseTestDc:           false,
		DatabaseDirectory:   filepath.Join(dataDir, ".tdlib", "database"),
		FilesDirectory:      filepath.Join(dataDir, ".tdlib", "files"),
		UseFileDatabase:     false,
		UseChatInfoDatabase: true,
		UseMessageDatabase:  true,
		UseSecretChats:      false,
		ApiId:               apiId,
		ApiHash:             apiHash,
		SystemLanguageCode:  "en",
		DeviceModel:         "Server",
		SystemVersion:       "1.0.0",
		ApplicationVersion:  "1.0.0",
	}

	return &TeleApp{
		parameters: parameters,
		chatsCache: make(map[int64]*client.Chat),
		usersCache: make(map[int64]*client.User),
	}
}

// Login 登录 Telegram 账号，首次运行时在终端交互输入手机号和验证码
func (app *TeleApp) Login(options ...client.Option) (*client.User, error) {
	if app.user != nil {
		return app.user, nil
	}

	authorizer := client.ClientAuthorizer(app.parameters)
	go client.CliInteractor(authorizer)

	tdlibClient, err := client.NewClient(authorizer, options...)
	if err != nil {
		return nil, err
	}

	me, err := tdlibClient.GetMe()
	if err != nil {
		return nil, err
	}

	app.user = me
	app.tdClient = tdlibClient
	app.connected.Store(true)

	listener := tdlibClient.GetListener()
	app.listener = listener

	app.ctxMu.Lock()
	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.ctxMu.Unlock()

	go app.watchUpdates(listener)

	return me, nil
}

func (app *TeleApp) Client() *client.Client {
	return app.tdClient
}

// Me 返回当前登录的账号，未登录时为 nil
func (app *TeleApp) Me() *client.User {
	return app.user
}

// IsConnected 是否已登录且会话未关闭
func (app *TeleApp) IsConnected() bool {
	return app != nil && app.tdClient != nil && app.connected.Load()
}

func (app *TeleApp) Close() error {
	if app.tdClient == nil {
		return nil
	}

	app.connected.Store(false)

	app.ctxMu.Lock()
	if app.cancel != nil {
		app.cancel()
	}
	app.ctxMu.Unlock()

	if app.listener != nil {
		app.listener.Close()
	}

	_, err := app.tdClient.Close()
	return err
}

// Identifiers 返回当前账号可能被提及的名字：名字、全名和用户名
func Identifiers(user *client.User) []string {
	if user == nil {
		return nil
	}

	identifiers := make([]string, 0, 4)
	if user.FirstName != "" {
		identifiers = append(identifiers, user.FirstName)
		if user.LastName != "" {
			identifiers = append(identifiers, user.FirstName+" "+user.LastName)
		}
	}
	if user.Usernames != nil {
		for _, username := range user.Usernames.ActiveUsernames {
			identifiers = append(identifiers, username, "@"+username)
		}
	}
	return identifiers
}

func (app *TeleApp) getChat(chatId int64) (*client.Chat, error) {
	// 先尝试读锁读取缓存
	app.chatsMu.RLock()
	chat, ok := app.chatsCache[chatId]
	app.chatsMu.RUnlock()
	if ok {
		return chat, nil
	}

	chat, err := app.tdClient.GetChat(&client.GetChatRequest{ChatId: chatId})
	if err != nil {
		return nil, err
	}

	app.chatsMu.Lock()
	app.chatsCache[chatId] = chat
	app.chatsMu.Unlock()
	return chat, nil
}

func (app *TeleApp) getUser(userId int64) (*client.User, error) {
	app.usersMu.RLock()
	user, ok := app.usersCache[userId]
	app.usersMu.RUnlock()
	if ok {
		return user, nil
	}

	user, err := app.tdClient.GetUser(&client.GetUserRequest{UserId: userId})
	if err != nil {
		return nil, err
	}

	app.usersMu.Lock()
	app.usersCache[userId] = user
	app.usersMu.Unlock()
	return user, nil
}

// watchUpdates 跟踪授权状态和用户资料变化
func (app *TeleApp) watchUpdates(listener *client.Listener) {
	app.ctxMu.Lock()
	ctx := app.ctx
	app.ctxMu.Unlock()

	for listener.IsActive() {
		select {
		case <-ctx.Done():
			logger.Infof("[TeleApp] 更新循环已取消，退出")
			return
		case update := <-listener.Updates:
			switch u := update.(type) {
			case *client.UpdateAuthorizationState:
				switch u.AuthorizationState.AuthorizationStateType() {
				case client.TypeAuthorizationStateClosing, client.TypeAuthorizationStateClosed, client.TypeAuthorizationStateLoggingOut:
					app.connected.Store(false)
					logger.Warnf("[TeleApp] Telegram 会话已断开: %s", u.AuthorizationState.AuthorizationStateType())
				case client.TypeAuthorizationStateReady:
					app.connected.Store(true)
				}
			case *client.UpdateUser:
				if u.User == nil {
					continue
				}
				app.usersMu.Lock()
				if _, ok := app.usersCache[u.User.Id]; ok {
					app.usersCache[u.User.Id] = u.User
				}
				app.usersMu.Unlock()
			case *client.UpdateChatTitle:
				app.chatsMu.Lock()
				delete(app.chatsCache, u.ChatId)
				app.chatsMu.Unlock()
			}
		}
	}
}
